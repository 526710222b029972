package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/llm/llmtest"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

const jd = "We need a Senior Backend Engineer with 5+ years Go experience."

func TestValidate_Valid(t *testing.T) {
	stub := llmtest.New("```json\n{\"is_valid\": true, \"reason\": \"VALID_JD\"}\n```")
	v := NewValidator(stub, "Backend Engineer", nil)

	result, err := v.Validate(context.Background(), jd)
	require.NoError(t, err)
	assert.Equal(t, &types.ValidationResult{IsValid: true, Reason: types.ReasonValidJD}, result)

	call := stub.LastCall()
	assert.True(t, call.JSON)
	assert.Equal(t, llm.TierLite, call.Tier)
	assert.Contains(t, call.Prompt, jd)
	assert.Contains(t, call.Opts.System, "Backend Engineer")
	require.NotNil(t, call.Opts.Temperature)
	assert.Zero(t, *call.Opts.Temperature)
}

func TestValidate_Rejection(t *testing.T) {
	stub := llmtest.New(`{"is_valid": false, "reason": "IRRELEVANT"}`)

	result, err := NewValidator(stub, "Backend Engineer", nil).Validate(context.Background(), "a recipe for banana bread")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, types.ReasonIrrelevant, result.Reason)
}

func TestValidate_EmptyInputSkipsModel(t *testing.T) {
	stub := llmtest.New(`{"is_valid": true, "reason": "VALID_JD"}`)

	result, err := NewValidator(stub, "", nil).Validate(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoContent, result.Reason)
	assert.Empty(t, stub.Calls())
}

func TestValidate_MalformedResponses(t *testing.T) {
	tests := map[string]string{
		"unknown reason":  `{"is_valid": true, "reason": "LOOKS_GOOD"}`,
		"missing reason":  `{"is_valid": true}`,
		"string boolean":  `{"is_valid": "yes", "reason": "VALID_JD"}`,
		"not json":        `VALID_JD`,
		"empty":           ``,
		"lowercase enum":  `{"is_valid": true, "reason": "valid_jd"}`,
		"array top level": `[{"is_valid": true, "reason": "VALID_JD"}]`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewValidator(llmtest.New(raw), "", nil).Validate(context.Background(), jd)
			var spe *types.StructureParsingError
			assert.ErrorAs(t, err, &spe)
		})
	}
}

func TestValidate_APIError(t *testing.T) {
	cause := errors.New("quota exceeded")
	stub := &llmtest.Stub{Err: cause}

	_, err := NewValidator(stub, "", nil).Validate(context.Background(), jd)

	var apiErr *APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, cause)

	var spe *types.StructureParsingError
	assert.False(t, errors.As(err, &spe))
}

func TestParseValidationResult(t *testing.T) {
	result, err := ParseValidationResult(`{"is_valid": false, "reason": "NO_MATCH", "extra": 1}`)
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoMatch, result.Reason)
}
