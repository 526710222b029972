package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]map[string]*Checkpoint
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]map[string]*Checkpoint)}
}

func clone(cp *Checkpoint) *Checkpoint {
	c := *cp
	c.Output = append([]byte(nil), cp.Output...)
	return &c
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, threadID, step string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.threads[threadID][step]
	if !ok {
		return nil, nil
	}
	return clone(cp), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.threads[cp.ThreadID]
	if !ok {
		steps = make(map[string]*Checkpoint)
		s.threads[cp.ThreadID] = steps
	}
	steps[cp.Step] = clone(cp)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, threadID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Checkpoint, 0, len(s.threads[threadID]))
	for _, cp := range s.threads[threadID] {
		out = append(out, clone(cp))
	}
	sortByCompletion(out)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
