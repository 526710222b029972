package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "body", Message: "invalid JSON"}
	assert.Equal(t, "validation error: body - invalid JSON", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "InvalidJobDescriptionError",
			err:      &types.InvalidJobDescriptionError{Reason: types.ReasonIrrelevant},
			expected: http.StatusBadRequest,
		},
		{
			name:     "NoContentError",
			err:      &types.NoContentError{},
			expected: http.StatusBadRequest,
		},
		{
			name:     "InvalidUrlSchemeError",
			err:      &types.InvalidUrlSchemeError{Scheme: "file"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "StructureParsingError wrapped in a step",
			err:      &pipeline.StepError{Step: "validate_jd", Err: &types.StructureParsingError{Message: "x"}},
			expected: http.StatusBadRequest,
		},
		{
			name:     "ErrNoInput",
			err:      pipeline.ErrNoInput,
			expected: http.StatusBadRequest,
		},
		{
			name:     "ErrInvalidThreadID wrapped",
			err:      fmt.Errorf("header: %w", pipeline.ErrInvalidThreadID),
			expected: http.StatusBadRequest,
		},
		{
			name:     "InitializationError",
			err:      &types.InitializationError{Message: "no candidate"},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "unknown error",
			err:      errors.New("unknown error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestErrorBody_FieldValidation(t *testing.T) {
	err := validator.New().Struct(types.PitchRequest{JobDescription: "short"})
	require.Error(t, err)

	body := ErrorBody(err)
	assert.Equal(t, ReasonInvalidRequest, body.Reason)
	assert.Equal(t, "JobDescription must be at least 20 characters", body.Error)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestErrorBody_GenericMessages(t *testing.T) {
	body := ErrorBody(&pipeline.StepError{
		Step: "validate_jd",
		Err:  &types.InvalidJobDescriptionError{Reason: types.ReasonNoContent},
	})
	assert.Equal(t, "That does not seem like a job description.", body.Error)
	assert.Equal(t, "NO_CONTENT", body.Reason)
	assert.Equal(t, "validate_jd", body.Step)

	body = ErrorBody(errors.New("dial tcp 10.0.0.5:6379: connection refused"))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Empty(t, body.Reason)
	assert.Empty(t, body.Step)
}
