package guardrails

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/prompts"
	"github.com/clintjohnsn/pytchdeck/internal/schemas"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

const promptFile = "pitch.json"

// Validator classifies job description text with a lite-tier model call.
type Validator struct {
	client      llm.Client
	targetRoles string
	logger      *zap.Logger
}

// NewValidator returns a Validator judging postings against targetRoles.
func NewValidator(client llm.Client, targetRoles string, log *zap.Logger) *Validator {
	return &Validator{client: client, targetRoles: targetRoles, logger: logger.OrNop(log)}
}

// Validate returns the structured judgment for jd.
// A response that is not JSON, misses a field, or uses an unknown reason is a *types.StructureParsingError.
func (v *Validator) Validate(ctx context.Context, jd string) (*types.ValidationResult, error) {
	if strings.TrimSpace(jd) == "" {
		return &types.ValidationResult{IsValid: false, Reason: types.ReasonNoContent}, nil
	}

	system, err := prompts.Render(promptFile, "validate-jd-system", map[string]string{"TargetRoles": v.targetRoles})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render(promptFile, "validate-jd-user", map[string]string{"JobDescription": jd})
	if err != nil {
		return nil, err
	}

	raw, err := v.client.GenerateJSON(ctx, user, llm.TierLite, llm.WithSystem(system), llm.WithTemperature(0))
	if err != nil {
		return nil, &APICallError{Message: "failed to validate job description", Cause: err}
	}

	result, err := ParseValidationResult(raw)
	if err != nil {
		v.logger.Warn("validator returned malformed result",
			zap.String(logger.FieldModel, v.client.GetModel(llm.TierLite)),
			zap.String("response", logger.TruncateForLog(raw, 200)),
			zap.Error(err),
		)
		return nil, err
	}

	v.logger.Debug("validated job description", zap.Bool("is_valid", result.IsValid), zap.String("reason", string(result.Reason)))
	return result, nil
}

// ParseValidationResult checks raw against the validation result schema and decodes it.
func ParseValidationResult(raw string) (*types.ValidationResult, error) {
	if err := schemas.Validate(schemas.ValidationResultSchema, []byte(raw)); err != nil {
		return nil, &types.StructureParsingError{Message: "validation result does not match schema", Cause: err}
	}

	var result types.ValidationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &types.StructureParsingError{Message: "failed to decode validation result", Cause: err}
	}
	if err := result.Check(); err != nil {
		return nil, &types.StructureParsingError{Message: "validation result has unknown reason", Cause: err}
	}
	return &result, nil
}
