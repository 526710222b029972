// Package pipeline runs the pitch deck workflow with per-step checkpointing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline/steps"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// ContentAcquirer fetches job description text for a link.
type ContentAcquirer interface {
	Acquire(ctx context.Context, link string) (string, error)
}

// Validator judges whether text is a usable job description.
type Validator interface {
	Validate(ctx context.Context, jd string) (*types.ValidationResult, error)
}

// FitAssessor compares a job description with the candidate context.
type FitAssessor interface {
	Assess(ctx context.Context, jd, candidateContext string) (string, error)
}

// DeckGenerator turns assessment content into a standalone HTML document.
type DeckGenerator interface {
	Generate(ctx context.Context, content string) (string, error)
}

// ArtifactWriter stores a generated deck under id and returns where it went.
type ArtifactWriter interface {
	Write(ctx context.Context, id, html string) (string, error)
}

// ArtifactChecker is implemented by writers that can tell whether a stored deck
// is still there. Without it a persisted checkpoint is always trusted.
type ArtifactChecker interface {
	Exists(ctx context.Context, id string) bool
}

// Progress statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusReused    = "reused"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
	StatusDone      = "done"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	ThreadID   string      `json:"thread_id"`
	Step       string      `json:"step,omitempty"`
	Category   string      `json:"category,omitempty"`
	Phase      types.Phase `json:"phase"`
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	DurationMs int64       `json:"duration_ms,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// ExecutionContext carries the per-invocation identity.
type ExecutionContext struct {
	ThreadID   string
	Host       string
	OnProgress ProgressCallback
}

// Deps are the engine's collaborators. All are required.
type Deps struct {
	Acquirer  ContentAcquirer
	Validator Validator
	Assessor  FitAssessor
	Generator DeckGenerator
	Writer    ArtifactWriter
	Store     checkpoint.Store
}

// Engine executes the fixed step sequence. Completed steps are read back from the
// checkpoint store instead of running again, and concurrent invocations sharing a
// thread id never run the same step at the same time.
type Engine struct {
	deps    Deps
	logger  *zap.Logger
	flights singleflight.Group

	mu       sync.Mutex
	inflight map[string]*flight
}

// NewEngine validates deps and returns an Engine.
func NewEngine(deps Deps, log *zap.Logger) (*Engine, error) {
	var missing []string
	if deps.Acquirer == nil {
		missing = append(missing, "acquirer")
	}
	if deps.Validator == nil {
		missing = append(missing, "validator")
	}
	if deps.Assessor == nil {
		missing = append(missing, "assessor")
	}
	if deps.Generator == nil {
		missing = append(missing, "generator")
	}
	if deps.Writer == nil {
		missing = append(missing, "writer")
	}
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return &Engine{deps: deps, logger: logger.OrNop(log), inflight: make(map[string]*flight)}, nil
}

// Store returns the checkpoint store.
func (e *Engine) Store() checkpoint.Store {
	return e.deps.Store
}

// Steps reports the checkpoint status of every step for a thread.
func (e *Engine) Steps(ctx context.Context, threadID string) ([]steps.StepStatus, error) {
	return steps.Status(ctx, e.deps.Store, threadID)
}

// Reset forgets every checkpoint of a thread so the next run starts over.
func (e *Engine) Reset(ctx context.Context, threadID string) error {
	return e.deps.Store.Clear(ctx, threadID)
}

// Run builds the State for req and executes the workflow under ec.ThreadID.
func (e *Engine) Run(ctx context.Context, req types.PitchRequest, ec ExecutionContext, candidateContext string) (*types.PitchOutput, error) {
	if !req.HasInput() {
		return nil, ErrNoInput
	}
	state := types.State{
		ID:               ec.ThreadID,
		Host:             ec.Host,
		JD:               req.JobDescription,
		JDLink:           req.JobDescriptionLink,
		CandidateContext: candidateContext,
	}
	result, err := e.Execute(ctx, state, ec.OnProgress)
	if err != nil {
		return nil, err
	}
	return &types.PitchOutput{Link: result.Link, Title: result.Title}, nil
}

type artifactRecord struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
}

// run tracks one invocation's phase and reporting.
type run struct {
	engine   *Engine
	state    types.State
	phase    types.Phase
	progress ProgressCallback
	logger   *zap.Logger

	// guards progress calls made from a shared step execution
	mu       sync.Mutex
	detached bool
}

func (r *run) emit(ev ProgressEvent) {
	ev.ThreadID = r.state.ID
	ev.Phase = r.phase
	if r.progress != nil {
		r.progress(ev)
	}
}

// flightEmit reports from inside a step execution, which may outlive the caller.
func (r *run) flightEmit(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.detached {
		r.emit(ev)
	}
}

// detach stops a still running step execution from reporting to this caller.
func (r *run) detach() {
	r.mu.Lock()
	r.detached = true
	r.mu.Unlock()
}

func (r *run) advance(next types.Phase) error {
	if !r.phase.CanTransition(next) {
		return fmt.Errorf("pipeline: illegal transition %s -> %s", r.phase, next)
	}
	r.phase = next
	return nil
}

func (r *run) fail(step string, err error) error {
	status := StatusFailed
	var invalid *types.InvalidJobDescriptionError
	if errors.As(err, &invalid) {
		status = StatusRejected
	}
	if !r.phase.IsTerminal() {
		_ = r.advance(types.PhaseFailed)
	}
	r.emit(ProgressEvent{Step: step, Status: status, Message: err.Error()})
	r.logger.Info("pitch workflow stopped", zap.String(logger.FieldStep, step), zap.String("phase", string(r.phase)), zap.Error(err))
	return &StepError{Step: step, Err: err}
}

// Execute runs the steps for state and returns the terminal result.
func (e *Engine) Execute(ctx context.Context, state types.State, onProgress ProgressCallback) (*types.GenerationResult, error) {
	if !ValidThreadID(state.ID) {
		return nil, ErrInvalidThreadID
	}
	r := &run{
		engine:   e,
		state:    state,
		phase:    types.PhasePendingContent,
		progress: onProgress,
		logger:   logger.WithThread(e.logger, state.ID),
	}

	jd, err := runStep(ctx, r, stepFunc[string]{
		name: steps.ResolveContent,
		run: func(ctx context.Context) (string, error) {
			if state.JD != "" {
				return state.JD, nil
			}
			if state.JDLink == "" {
				return "", ErrNoInput
			}
			text, err := e.deps.Acquirer.Acquire(ctx, state.JDLink)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(text) == "" {
				return "", &types.NoContentError{URL: state.JDLink}
			}
			return text, nil
		},
	})
	if err != nil {
		return nil, r.fail(steps.ResolveContent, err)
	}

	verdict, err := runStep(ctx, r, stepFunc[types.ValidationResult]{
		name: steps.ValidateJD,
		next: validationPhase,
		run: func(ctx context.Context) (types.ValidationResult, error) {
			res, err := e.deps.Validator.Validate(ctx, jd)
			if err != nil {
				return types.ValidationResult{}, err
			}
			if res == nil {
				return types.ValidationResult{}, &types.StructureParsingError{Message: "validator returned no result"}
			}
			if err := res.Check(); err != nil {
				return types.ValidationResult{}, &types.StructureParsingError{Message: "validator returned an unknown reason", Cause: err}
			}
			return *res, nil
		},
	})
	if err != nil {
		return nil, r.fail(steps.ValidateJD, err)
	}
	if !verdict.IsValid {
		return nil, r.fail(steps.ValidateJD, &types.InvalidJobDescriptionError{Reason: verdict.Reason})
	}

	assessment, err := runStep(ctx, r, stepFunc[string]{
		name: steps.AssessFit,
		run: func(ctx context.Context) (string, error) {
			return e.deps.Assessor.Assess(ctx, jd, state.CandidateContext)
		},
	})
	if err != nil {
		return nil, r.fail(steps.AssessFit, err)
	}

	html, err := runStep(ctx, r, stepFunc[string]{
		name: steps.GenerateDeck,
		run: func(ctx context.Context) (string, error) {
			return e.deps.Generator.Generate(ctx, deckContent(assessment, state.CandidateContext))
		},
	})
	if err != nil {
		return nil, r.fail(steps.GenerateDeck, err)
	}

	if _, err := runStep(ctx, r, stepFunc[artifactRecord]{
		name: steps.PersistArtifact,
		// a deck deleted from disk is written again from the generate_deck checkpoint
		reusable: func(artifactRecord) bool {
			checker, ok := e.deps.Writer.(ArtifactChecker)
			return !ok || checker.Exists(ctx, state.ID)
		},
		run: func(ctx context.Context) (artifactRecord, error) {
			path, err := e.deps.Writer.Write(ctx, state.ID, html)
			if err != nil {
				return artifactRecord{}, err
			}
			return artifactRecord{Filename: ArtifactName(state.ID), Path: path, Bytes: len(html)}, nil
		},
	}); err != nil {
		return nil, r.fail(steps.PersistArtifact, err)
	}

	if err := r.advance(types.PhaseDone); err != nil {
		return nil, err
	}
	result := &types.GenerationResult{
		Link:  ArtifactLink(state.Host, state.ID),
		Title: types.DefaultDeckTitle,
	}
	r.emit(ProgressEvent{Status: StatusDone, Message: result.Link})
	r.logger.Info("pitch deck generated", zap.String("link", result.Link))
	return result, nil
}

func validationPhase(v types.ValidationResult) types.Phase {
	if v.IsValid {
		return types.PhaseValidated
	}
	return types.PhaseRejected
}

func deckContent(assessment, candidateContext string) string {
	if candidateContext == "" {
		return assessment
	}
	return assessment + "\n\n" + candidateContext
}

// stepFunc describes one checkpointed step of a run.
type stepFunc[T any] struct {
	name string
	// next picks the phase after the step; nil means the registered phase.
	next func(T) types.Phase
	// reusable rejects a completed checkpoint whose output no longer holds.
	reusable func(T) bool
	run      func(context.Context) (T, error)
}

type stepOutcome[T any] struct {
	value  T
	reused bool
}

// flight is the context shared by every caller coalesced onto one (thread, step)
// execution. It is cancelled when the last waiting caller goes away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (e *Engine) join(ctx context.Context, key string) *flight {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.inflight[key]; ok {
		f.waiters++
		return f
	}
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{ctx: fctx, cancel: cancel, waiters: 1}
	e.inflight[key] = f
	return f
}

func (e *Engine) leave(key string, f *flight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if e.inflight[key] == f {
		delete(e.inflight, key)
	}
	// an abandoned execution must not be joined by later callers
	e.flights.Forget(key)
}

// runStep returns the checkpointed output of the step when one exists and otherwise
// executes it once for the (thread, step) key and records the outcome. Each caller
// waits on its own ctx; the execution itself only stops once nobody waits for it.
func runStep[T any](ctx context.Context, r *run, s stepFunc[T]) (T, error) {
	var zero T
	e := r.engine
	def, _ := steps.Get(s.name)
	log := r.logger.With(zap.String(logger.FieldStep, s.name))

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	key := r.state.ID + "/" + s.name
	f := e.join(ctx, key)
	defer e.leave(key, f)

	ch := e.flights.DoChan(key, func() (any, error) {
		return executeStep(f.ctx, r, s, def, log)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		r.detach()
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}

	out := res.Val.(stepOutcome[T])
	phase := def.Phase
	if s.next != nil {
		phase = s.next(out.value)
	}
	if err := r.advance(phase); err != nil {
		return zero, err
	}
	status := StatusCompleted
	if out.reused {
		status = StatusReused
		log.Debug("reused checkpoint")
	}
	r.emit(ProgressEvent{Step: s.name, Category: def.Category, Status: status})
	return out.value, nil
}

func executeStep[T any](ctx context.Context, r *run, s stepFunc[T], def steps.StepDefinition, log *zap.Logger) (any, error) {
	e := r.engine
	if locker, ok := e.deps.Store.(checkpoint.Locker); ok {
		unlock, err := locker.Lock(ctx, r.state.ID, s.name)
		if err != nil {
			return nil, fmt.Errorf("failed to lock step: %w", err)
		}
		defer unlock()
	}

	cached, err := e.deps.Store.Get(ctx, r.state.ID, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if cached.Completed() {
		var v T
		switch err := cached.Decode(&v); {
		case err != nil:
			log.Warn("ignoring undecodable checkpoint", zap.Error(err))
		case s.reusable != nil && !s.reusable(v):
			log.Info("checkpoint output is gone, running step again")
		default:
			return stepOutcome[T]{value: v, reused: true}, nil
		}
	}

	r.flightEmit(ProgressEvent{Step: s.name, Category: def.Category, Status: StatusStarted, Message: def.Description})
	start := time.Now()
	v, runErr := s.run(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		recordFailure(ctx, e.deps.Store, checkpoint.Failed(r.state.ID, s.name, runErr, elapsed), log)
		return nil, runErr
	}

	cp, err := checkpoint.New(r.state.ID, s.name, v, elapsed)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Store.Put(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to record checkpoint: %w", err)
	}
	log.Debug("step completed", zap.Duration("duration", elapsed))
	return stepOutcome[T]{value: v}, nil
}

// recordFailure stores a failed checkpoint unless the step has completed meanwhile.
func recordFailure(ctx context.Context, store checkpoint.Store, cp *checkpoint.Checkpoint, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	if existing, err := store.Get(ctx, cp.ThreadID, cp.Step); err == nil && existing.Completed() {
		return
	}
	if err := store.Put(ctx, cp); err != nil {
		log.Warn("failed to record step failure", zap.Error(err))
	}
}
