package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound indicates that no state exists for the given request id.
var ErrNotFound = errors.New("state: request id not found")

// Store is per-request working memory with copy-on-write updates, keyed by
// request id. Implementations must serialize concurrent mutation of the same
// id. The Orchestrator does not go through a Store: it merges parallel
// action results serially into its own AgentState value.
type Store interface {
	// Create initializes a new AgentState for userInput and stores it under a
	// fresh request id.
	Create(ctx context.Context, userInput string, opts Options) (AgentState, error)
	// Get returns the current state for id.
	Get(ctx context.Context, id string) (AgentState, error)
	// Update replaces the stored state for id with a caller-computed value.
	// Update never merges partials itself; callers read-modify-clone-write.
	Update(ctx context.Context, id string, next AgentState) (AgentState, error)
	// UpdateNested applies fn to the current state under id's lock and stores
	// the result, returning it, so the read-modify-write is atomic with
	// respect to other callers of the same id.
	UpdateNested(ctx context.Context, id string, fn func(AgentState) AgentState) (AgentState, error)
	// Delete removes the stored state for id.
	Delete(ctx context.Context, id string) error
}

// memStore is the in-memory Store implementation. Records are defensively
// cloned on both read and write so no caller can alias storage, following the
// teacher's run.Store pattern: lock around a map, clone in, clone out.
type memStore struct {
	mu      sync.Mutex
	records map[string]AgentState
	nextID  func() string
}

// NewMemStore constructs an empty in-memory Store. newID generates request
// ids; pass a uuid-backed generator in production and a deterministic one in
// tests.
func NewMemStore(newID func() string) Store {
	return &memStore{
		records: make(map[string]AgentState),
		nextID:  newID,
	}
}

func (s *memStore) Create(_ context.Context, userInput string, opts Options) (AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	st := New(id, userInput, opts)
	s.records[id] = st.Clone()
	return st.Clone(), nil
}

func (s *memStore) Get(_ context.Context, id string) (AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.records[id]
	if !ok {
		return AgentState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return st.Clone(), nil
}

func (s *memStore) Update(_ context.Context, id string, next AgentState) (AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return AgentState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	clone := next.Clone()
	s.records[id] = clone
	return clone.Clone(), nil
}

func (s *memStore) UpdateNested(_ context.Context, id string, fn func(AgentState) AgentState) (AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return AgentState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := fn(cur.Clone()).Clone()
	s.records[id] = next
	return next.Clone(), nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
