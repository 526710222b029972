package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// Reason codes for errors that do not carry one of their own
const (
	ReasonInvalidURLScheme = "INVALID_URL_SCHEME"
	ReasonStructureParsing = "STRUCTURE_PARSING"
	ReasonInvalidRequest   = "INVALID_REQUEST"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Step   string `json:"step,omitempty"`
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return "validation error: " + e.Field + " - " + e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		invalidJD   *types.InvalidJobDescriptionError
		noContent   *types.NoContentError
		badScheme   *types.InvalidUrlSchemeError
		parsing     *types.StructureParsingError
		validation  *ErrValidation
		fieldErrors validator.ValidationErrors
	)
	switch {
	case errors.As(err, &invalidJD),
		errors.As(err, &noContent),
		errors.As(err, &badScheme),
		errors.As(err, &parsing),
		errors.As(err, &validation),
		errors.As(err, &fieldErrors),
		errors.Is(err, pipeline.ErrNoInput),
		errors.Is(err, pipeline.ErrInvalidThreadID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody maps err to the response body callers see. Messages are generic;
// the underlying error is only logged.
func ErrorBody(err error) ErrorResponse {
	resp := ErrorResponse{Step: pipeline.FailedStep(err)}

	var (
		invalidJD   *types.InvalidJobDescriptionError
		noContent   *types.NoContentError
		badScheme   *types.InvalidUrlSchemeError
		parsing     *types.StructureParsingError
		validation  *ErrValidation
		fieldErrors validator.ValidationErrors
	)
	switch {
	case errors.As(err, &invalidJD):
		resp.Error = "That does not seem like a job description."
		resp.Reason = string(invalidJD.Reason)
	case errors.As(err, &noContent):
		resp.Error = "No content could be found at the job description link."
		resp.Reason = string(types.ReasonNoContent)
	case errors.As(err, &badScheme):
		resp.Error = "Only http and https job description links are supported."
		resp.Reason = ReasonInvalidURLScheme
	case errors.As(err, &parsing):
		resp.Error = "The job description could not be assessed. Please try again."
		resp.Reason = ReasonStructureParsing
	case errors.As(err, &validation):
		resp.Error = validation.Error()
		resp.Reason = ReasonInvalidRequest
	case errors.As(err, &fieldErrors):
		resp.Error = validationMessage(fieldErrors)
		resp.Reason = ReasonInvalidRequest
	case errors.Is(err, pipeline.ErrNoInput), errors.Is(err, pipeline.ErrInvalidThreadID):
		resp.Error = err.Error()
		resp.Reason = ReasonInvalidRequest
	default:
		resp.Error = "Internal server error"
	}
	return resp
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "url":
		return fe.Field() + " must be a valid URL"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
