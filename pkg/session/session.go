// Package session provides exclusive per-session ownership of
// contracts.SessionState: a lease so that, per spec.md §5, only one verb
// executes for a given runSessionId at any time, while unrelated sessions
// proceed concurrently.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/store/sessionstore"
)

// Manager shards a mutex per runSessionId over an underlying
// sessionstore.Store, so the Turn Controller can serialize verb
// execution per session without serializing across sessions.
type Manager struct {
	store sessionstore.Store

	leasesMu sync.Mutex
	leases   map[string]*sync.Mutex
}

// NewManager constructs a Manager backed by store.
func NewManager(store sessionstore.Store) *Manager {
	return &Manager{store: store, leases: make(map[string]*sync.Mutex)}
}

func (m *Manager) leaseFor(runSessionID string) *sync.Mutex {
	m.leasesMu.Lock()
	defer m.leasesMu.Unlock()
	l, ok := m.leases[runSessionID]
	if !ok {
		l = &sync.Mutex{}
		m.leases[runSessionID] = l
	}
	return l
}

// WithLease runs fn while holding the exclusive lease for runSessionID,
// loading the current SessionState (nil if none exists yet) and passing
// it to fn; fn's returned state, if non-nil, is persisted before the
// lease is released. Handlers may perform concurrent I/O inside fn — the
// lease only prevents two verbs for the same session from running at
// once.
func (m *Manager) WithLease(ctx context.Context, runSessionID string, fn func(ctx context.Context, current *contracts.SessionState) (*contracts.SessionState, error)) (*contracts.SessionState, error) {
	lease := m.leaseFor(runSessionID)
	lease.Lock()
	defer lease.Unlock()

	current, err := m.store.Get(ctx, runSessionID)
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", runSessionID, err)
	}

	next, err := fn(ctx, current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	if err := m.store.Set(ctx, next); err != nil {
		return nil, fmt.Errorf("session: persist %s: %w", runSessionID, err)
	}
	return next, nil
}

// Get loads a session's state without taking its lease — safe for
// read-only inspection outside the critical section (e.g. diagnostics).
func (m *Manager) Get(ctx context.Context, runSessionID string) (*contracts.SessionState, error) {
	return m.store.Get(ctx, runSessionID)
}
