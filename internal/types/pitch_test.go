package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidityReason_IsKnown(t *testing.T) {
	tests := []struct {
		reason ValidityReason
		want   bool
	}{
		{ReasonNoContent, true},
		{ReasonIrrelevant, true},
		{ReasonNoMatch, true},
		{ReasonValidJD, true},
		{"MAYBE", false},
		{"valid_jd", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.IsKnown())
		})
	}
}

func TestValidationResult_JSON(t *testing.T) {
	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(`{"is_valid": true, "reason": "VALID_JD"}`), &result))

	assert.True(t, result.IsValid)
	assert.Equal(t, ReasonValidJD, result.Reason)
	assert.NoError(t, result.Check())

	result.Reason = "SOMETHING_ELSE"
	assert.Error(t, result.Check())
}

func TestPitchRequest_HasInput(t *testing.T) {
	assert.False(t, PitchRequest{}.HasInput())
	assert.True(t, PitchRequest{JobDescription: "text"}.HasInput())
	assert.True(t, PitchRequest{JobDescriptionLink: "https://example.com"}.HasInput())
}

func TestPhase_Transitions(t *testing.T) {
	happy := []Phase{
		PhasePendingContent,
		PhaseContentResolved,
		PhaseValidated,
		PhaseFitAssessed,
		PhaseDeckGenerated,
		PhasePersisted,
		PhaseDone,
	}
	for i := 0; i < len(happy)-1; i++ {
		assert.True(t, happy[i].CanTransition(happy[i+1]), "%s -> %s", happy[i], happy[i+1])
	}

	assert.True(t, PhaseContentResolved.CanTransition(PhaseRejected))
	assert.False(t, PhasePendingContent.CanTransition(PhaseValidated), "must not skip a predecessor")
	assert.False(t, PhaseFitAssessed.CanTransition(PhaseValidated), "must not go backwards")
	assert.False(t, PhaseRejected.CanTransition(PhaseFitAssessed))
	assert.False(t, PhaseDone.CanTransition(PhaseFailed))

	assert.True(t, PhaseDone.IsTerminal())
	assert.True(t, PhaseRejected.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())
	assert.False(t, PhaseValidated.IsTerminal())
}

func TestErrors_As(t *testing.T) {
	cause := errors.New("bad json")
	wrapped := fmt.Errorf("validate_jd: %w", &StructureParsingError{Message: "guardrail response", Cause: cause})

	var spe *StructureParsingError
	require.ErrorAs(t, wrapped, &spe)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, spe.Error(), "guardrail response")

	var ije *InvalidJobDescriptionError
	err := fmt.Errorf("step: %w", &InvalidJobDescriptionError{Reason: ReasonNoMatch})
	require.ErrorAs(t, err, &ije)
	assert.Equal(t, ReasonNoMatch, ije.Reason)

	assert.Equal(t, "no content found at http://x", (&NoContentError{URL: "http://x"}).Error())
	assert.Contains(t, (&InvalidUrlSchemeError{Scheme: "ftp"}).Error(), `"ftp"`)
	assert.Contains(t, (&InitializationError{Message: "candidate dir empty"}).Error(), "candidate dir empty")
}
