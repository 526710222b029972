// Package assessment produces a free-text judgment of how a candidate fits a role.
package assessment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/prompts"
)

// FitAssessor compares a job description with the candidate context.
type FitAssessor struct {
	client      llm.Client
	temperature float32
	logger      *zap.Logger
}

// NewFitAssessor returns an assessor using the standard tier.
func NewFitAssessor(client llm.Client, log *zap.Logger) *FitAssessor {
	return &FitAssessor{client: client, temperature: 0.5, logger: logger.OrNop(log)}
}

// Assess returns the model's assessment. An empty answer is returned as is.
func (a *FitAssessor) Assess(ctx context.Context, jd, candidateContext string) (string, error) {
	system, err := prompts.Get("pitch.json", "assess-fit-system")
	if err != nil {
		return "", err
	}
	user, err := prompts.Render("pitch.json", "assess-fit-user", map[string]string{
		"JobDescription":   jd,
		"CandidateContext": candidateContext,
	})
	if err != nil {
		return "", err
	}

	out, err := a.client.GenerateContent(ctx, user, llm.TierStandard, llm.WithSystem(system), llm.WithTemperature(a.temperature))
	if err != nil {
		return "", fmt.Errorf("failed to assess fit: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		a.logger.Warn("fit assessment is empty", zap.String(logger.FieldModel, a.client.GetModel(llm.TierStandard)))
	}
	return out, nil
}
