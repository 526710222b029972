// Package types provides type definitions for structured data used throughout the pytchdeck system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// DefaultDeckTitle is the display title attached to every generated deck.
const DefaultDeckTitle = "Pitch Deck"

// State is the context threaded through one workflow invocation.
// It is built once per request and never mutated by the steps; derived values
// such as the resolved job description live in step outputs instead.
type State struct {
	ID               string `json:"id"`
	Host             string `json:"host"`
	JD               string `json:"jd,omitempty"`
	JDLink           string `json:"jd_link,omitempty"`
	CandidateContext string `json:"candidate_context"`
}

// ValidityReason is the closed set of reason codes the job description guardrail may return.
type ValidityReason string

const (
	// ReasonNoContent means nothing usable was found at the link
	ReasonNoContent ValidityReason = "NO_CONTENT"
	// ReasonIrrelevant means the content is not a job description
	ReasonIrrelevant ValidityReason = "IRRELEVANT"
	// ReasonNoMatch means the posting does not match the target roles
	ReasonNoMatch ValidityReason = "NO_MATCH"
	// ReasonValidJD means the content is a valid job description post
	ReasonValidJD ValidityReason = "VALID_JD"
)

// ValidityReasons lists every accepted reason code in declaration order.
func ValidityReasons() []ValidityReason {
	return []ValidityReason{ReasonNoContent, ReasonIrrelevant, ReasonNoMatch, ReasonValidJD}
}

// IsKnown reports whether r is one of the accepted reason codes.
func (r ValidityReason) IsKnown() bool {
	for _, known := range ValidityReasons() {
		if r == known {
			return true
		}
	}
	return false
}

// ValidationResult is the structured judgment produced by the guardrail.
type ValidationResult struct {
	IsValid bool           `json:"is_valid"`
	Reason  ValidityReason `json:"reason"`
}

// Check returns an error when the result carries an unknown reason code.
func (v ValidationResult) Check() error {
	if !v.Reason.IsKnown() {
		return fmt.Errorf("unknown validity reason %q", v.Reason)
	}
	return nil
}

// GenerationResult is the terminal output of a successful workflow run.
type GenerationResult struct {
	Link    string `json:"link,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// PitchRequest is the inbound request for a deck.
type PitchRequest struct {
	JobDescription     string `json:"job_description,omitempty" validate:"omitempty,min=20"`
	JobDescriptionLink string `json:"job_description_link,omitempty" validate:"omitempty,url"`
}

// HasInput reports whether at least one of the two inputs is present.
func (r PitchRequest) HasInput() bool {
	return r.JobDescription != "" || r.JobDescriptionLink != ""
}

// PitchOutput is the response body returned to callers.
type PitchOutput struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// Phase tracks where an invocation is in the pipeline.
type Phase string

const (
	PhasePendingContent  Phase = "PENDING_CONTENT"
	PhaseContentResolved Phase = "CONTENT_RESOLVED"
	PhaseValidated       Phase = "VALIDATED"
	PhaseRejected        Phase = "REJECTED"
	PhaseFitAssessed     Phase = "FIT_ASSESSED"
	PhaseDeckGenerated   Phase = "DECK_GENERATED"
	PhasePersisted       Phase = "PERSISTED"
	PhaseDone            Phase = "DONE"
	PhaseFailed          Phase = "FAILED"
)

var phaseTransitions = map[Phase][]Phase{
	PhasePendingContent:  {PhaseContentResolved, PhaseFailed},
	PhaseContentResolved: {PhaseValidated, PhaseRejected, PhaseFailed},
	PhaseValidated:       {PhaseFitAssessed, PhaseFailed},
	PhaseFitAssessed:     {PhaseDeckGenerated, PhaseFailed},
	PhaseDeckGenerated:   {PhasePersisted, PhaseFailed},
	PhasePersisted:       {PhaseDone, PhaseFailed},
}

// CanTransition reports whether moving from p to next is a legal step.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseRejected || p == PhaseFailed
}
