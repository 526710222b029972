// Package steps defines the ordered pitch workflow steps, their dependencies, and
// how a thread's checkpoints map onto them.
package steps

import (
	"context"
	"fmt"

	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// Step names double as checkpoint keys and must stay stable across releases.
const (
	ResolveContent  = "resolve_content"
	ValidateJD      = "validate_jd"
	AssessFit       = "assess_fit"
	GenerateDeck    = "generate_deck"
	PersistArtifact = "persist_artifact"
)

// Step categories
const (
	CategoryIngestion  = "ingestion"
	CategoryValidation = "validation"
	CategoryGeneration = "generation"
	CategoryOutput     = "output"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Description  string
	Dependencies []string
	// Phase is entered when the step completes.
	Phase types.Phase
}

// Ordered lists the steps in execution order.
var Ordered = []StepDefinition{
	{
		Name:        ResolveContent,
		Category:    CategoryIngestion,
		Description: "Use the submitted job description or fetch it from the link",
		Phase:       types.PhaseContentResolved,
	},
	{
		Name:         ValidateJD,
		Category:     CategoryValidation,
		Description:  "Check the content is a job description for the target roles",
		Dependencies: []string{ResolveContent},
		Phase:        types.PhaseValidated,
	},
	{
		Name:         AssessFit,
		Category:     CategoryGeneration,
		Description:  "Assess the candidate's fit for the role",
		Dependencies: []string{ValidateJD},
		Phase:        types.PhaseFitAssessed,
	},
	{
		Name:         GenerateDeck,
		Category:     CategoryGeneration,
		Description:  "Generate the slide deck",
		Dependencies: []string{AssessFit},
		Phase:        types.PhaseDeckGenerated,
	},
	{
		Name:         PersistArtifact,
		Category:     CategoryOutput,
		Description:  "Write the deck to the generated directory",
		Dependencies: []string{GenerateDeck},
		Phase:        types.PhasePersisted,
	},
}

// StepRegistry indexes Ordered by name.
var StepRegistry = func() map[string]StepDefinition {
	m := make(map[string]StepDefinition, len(Ordered))
	for _, def := range Ordered {
		m[def.Name] = def
	}
	return m
}()

// Names returns the step names in execution order.
func Names() []string {
	names := make([]string, len(Ordered))
	for i, def := range Ordered {
		names[i] = def.Name
	}
	return names
}

// Get returns the definition of a step.
func Get(name string) (StepDefinition, bool) {
	def, ok := StepRegistry[name]
	return def, ok
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s has missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks if all required dependencies for a step are completed
func ValidateDependencies(ctx context.Context, store checkpoint.Store, threadID, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		cp, err := store.Get(ctx, threadID, dep)
		if err != nil {
			return fmt.Errorf("failed to check dependency %s: %w", dep, err)
		}
		if !cp.Completed() {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Step: stepName, MissingDependencies: missing}
	}
	return nil
}

// Step states reported by Status
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
	StatePending   = "pending"
	StateBlocked   = "blocked"
)

// StepStatus is the view of one step for one thread.
type StepStatus struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Status reports every step of a thread in execution order. A step whose
// dependencies are not all completed is blocked; otherwise it is pending.
func Status(ctx context.Context, store checkpoint.Store, threadID string) ([]StepStatus, error) {
	cps, err := store.List(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	byStep := make(map[string]*checkpoint.Checkpoint, len(cps))
	for _, cp := range cps {
		byStep[cp.Step] = cp
	}

	out := make([]StepStatus, 0, len(Ordered))
	for _, def := range Ordered {
		st := StepStatus{Name: def.Name, Category: def.Category}
		if cp, ok := byStep[def.Name]; ok {
			st.State = StateCompleted
			if !cp.Completed() {
				st.State = StateFailed
				st.Error = cp.Error
			}
			st.DurationMs = cp.DurationMs
			st.CompletedAt = cp.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		} else {
			st.State = StatePending
			for _, dep := range def.Dependencies {
				if !byStep[dep].Completed() {
					st.State = StateBlocked
					break
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// GetAvailableSteps returns steps that can run next for a thread
func GetAvailableSteps(ctx context.Context, store checkpoint.Store, threadID string) ([]string, error) {
	statuses, err := Status(ctx, store, threadID)
	if err != nil {
		return nil, err
	}
	return Available(statuses), nil
}

// Available filters statuses down to the steps that are ready to run.
func Available(statuses []StepStatus) []string {
	var available []string
	for _, st := range statuses {
		if st.State == StatePending || st.State == StateFailed {
			available = append(available, st.Name)
		}
	}
	return available
}
