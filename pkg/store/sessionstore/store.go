// Package sessionstore persists contracts.SessionState. An in-memory
// backend is the default (tests, single-process deployments); a Postgres
// backend is available for durable multi-instance deployments.
package sessionstore

import (
	"context"
	"sync"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// Store is the persistence boundary for session state.
type Store interface {
	Get(ctx context.Context, runSessionID string) (*contracts.SessionState, error)
	Set(ctx context.Context, s *contracts.SessionState) error
	Delete(ctx context.Context, runSessionID string) error
}

// MemoryStore implements Store in memory, thread-safe via RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*contracts.SessionState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*contracts.SessionState)}
}

func (s *MemoryStore) Get(ctx context.Context, runSessionID string) (*contracts.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[runSessionID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, st *contracts.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.sessions[st.RunSessionID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, runSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, runSessionID)
	return nil
}
