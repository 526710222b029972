// Package guardrails decides whether submitted content is a job description worth pitching against.
package guardrails

import "fmt"

// APICallError represents a failed model call during validation
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("guardrail API call error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("guardrail API call error: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}
