package types

import "fmt"

// InvalidJobDescriptionError is returned when the guardrail rejects the input.
type InvalidJobDescriptionError struct {
	Reason ValidityReason
}

func (e *InvalidJobDescriptionError) Error() string {
	return fmt.Sprintf("that does not seem like a job description (%s)", e.Reason)
}

// NoContentError is returned when a link yields no extractable text.
type NoContentError struct {
	URL string
}

func (e *NoContentError) Error() string {
	if e.URL == "" {
		return "no content found"
	}
	return fmt.Sprintf("no content found at %s", e.URL)
}

// InvalidUrlSchemeError is returned for links that are not http or https.
//
//nolint:revive // name kept aligned with the HTTP error vocabulary
type InvalidUrlSchemeError struct {
	URL    string
	Scheme string
}

func (e *InvalidUrlSchemeError) Error() string {
	return fmt.Sprintf("invalid url scheme %q: only http and https are supported", e.Scheme)
}

// StructureParsingError is returned when a structured model response does not match its schema.
type StructureParsingError struct {
	Message string
	Cause   error
}

func (e *StructureParsingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("structure parsing error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("structure parsing error: %s", e.Message)
}

func (e *StructureParsingError) Unwrap() error {
	return e.Cause
}

// InitializationError signals that required startup context was not provisioned.
type InitializationError struct {
	Message string
	Cause   error
}

func (e *InitializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("initialization failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("initialization failed: %s", e.Message)
}

func (e *InitializationError) Unwrap() error {
	return e.Cause
}
