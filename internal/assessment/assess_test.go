package assessment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/llm/llmtest"
)

func TestAssess(t *testing.T) {
	stub := llmtest.New("  Strong Go background; limited Kubernetes.\n")
	out, err := NewFitAssessor(stub, nil).Assess(context.Background(), "Backend role, Go", "6 years Go")
	require.NoError(t, err)
	assert.Equal(t, "Strong Go background; limited Kubernetes.", out)

	call := stub.LastCall()
	assert.False(t, call.JSON)
	assert.Equal(t, llm.TierStandard, call.Tier)
	assert.Contains(t, call.Prompt, "Backend role, Go")
	assert.Contains(t, call.Prompt, "6 years Go")
	assert.Contains(t, call.Opts.System, "fit")
	assert.InDelta(t, 0.5, *call.Opts.Temperature, 1e-6)
}

func TestAssess_EmptyIsNotAnError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	out, err := NewFitAssessor(llmtest.New(""), zap.New(core)).Assess(context.Background(), "jd", "ctx")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, logs.FilterMessage("fit assessment is empty").Len())
}

func TestAssess_Error(t *testing.T) {
	cause := errors.New("deadline exceeded")
	_, err := NewFitAssessor(&llmtest.Stub{Err: cause}, nil).Assess(context.Background(), "jd", "ctx")
	assert.ErrorIs(t, err, cause)
}
