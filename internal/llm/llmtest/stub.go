// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
)

// Call records one request made to a Stub.
type Call struct {
	Prompt string
	Tier   llm.ModelTier
	JSON   bool
	Opts   llm.CallOptions
}

// Stub returns Responses in order, repeating the last one, or Err when set.
type Stub struct {
	Responses []string
	Err       error

	mu    sync.Mutex
	calls []Call
}

// New returns a stub answering every call with the given responses.
func New(responses ...string) *Stub {
	return &Stub{Responses: responses}
}

func (s *Stub) record(prompt string, tier llm.ModelTier, json bool, opts []llm.CallOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Prompt: prompt, Tier: tier, JSON: json, Opts: llm.ApplyOptions(opts...)})
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	i := len(s.calls) - 1
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	return s.Responses[i], nil
}

// GenerateContent implements llm.Client.
func (s *Stub) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier, opts ...llm.CallOption) (string, error) {
	return s.record(prompt, tier, false, opts)
}

// GenerateJSON implements llm.Client.
func (s *Stub) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier, opts ...llm.CallOption) (string, error) {
	out, err := s.record(prompt, tier, true, opts)
	return llm.CleanJSONBlock(out), err
}

// GetModel implements llm.Client.
func (s *Stub) GetModel(tier llm.ModelTier) string { return "stub-" + string(tier) }

// Provider implements llm.Client.
func (s *Stub) Provider() llm.Provider { return "stub" }

// Close implements llm.Client.
func (s *Stub) Close() error { return nil }

// Calls returns a copy of the recorded calls.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// LastCall returns the most recent call, or the zero Call.
func (s *Stub) LastCall() Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return Call{}
	}
	return s.calls[len(s.calls)-1]
}
