// Package collision implements the Collision Guard: a per-session
// reservation set over an IntendedEffectSet (files, symbols, graph
// mutations, external side effects), single-writer per session.
package collision

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// IntendedEffectSet is the set of resources one in-flight operation
// touches.
type IntendedEffectSet struct {
	Files                []string
	Symbols              []string
	GraphMutations       []string
	ExternalSideEffects  []string
}

// Reservation is a held IntendedEffectSet, released when the operation
// completes.
type Reservation struct {
	guard  *Guard
	runID  string
	effects IntendedEffectSet
}

// Release frees the reservation's resources.
func (r *Reservation) Release() {
	r.guard.release(r.runID, r.effects)
}

// Guard is the in-memory, per-session reservation set. It is safe for
// concurrent use; reservations for the same session are effectively
// serialized by the Turn Controller's per-session lease, but the guard
// itself is defensive against misuse.
type Guard struct {
	mu          sync.Mutex
	reservedBy  map[string]map[string]bool // runSessionId -> resource key -> true
}

// NewGuard constructs an in-memory Guard.
func NewGuard() *Guard {
	return &Guard{reservedBy: make(map[string]map[string]bool)}
}

// AssertAndReserve fails with EXEC_UNGATED_SIDE_EFFECT when any
// externalSideEffect in effects is not present in approvedGates, and
// fails with PLAN_SCOPE_VIOLATION when any file/symbol/graphMutation in
// effects is already reserved by another in-flight operation in this
// session. On success it returns a Reservation the caller must Release
// when the operation completes.
func (g *Guard) AssertAndReserve(ctx context.Context, runSessionID string, effects IntendedEffectSet, approvedGates []string) (*Reservation, *contracts.DenyReason) {
	for _, se := range effects.ExternalSideEffects {
		if !containsStr(approvedGates, se) {
			return nil, &contracts.DenyReason{
				Code:    contracts.RejectExecUngatedSideEffect,
				Message: fmt.Sprintf("external side effect %q is not in the plan's approved commit-gate set", se),
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	held := g.reservedBy[runSessionID]
	if held == nil {
		held = make(map[string]bool)
	}

	keys := resourceKeys(effects)
	for _, k := range keys {
		if held[k] {
			return nil, &contracts.DenyReason{
				Code:    contracts.RejectPlanScopeViolation,
				Message: fmt.Sprintf("resource %q is already reserved by an in-flight operation in this session", k),
			}
		}
	}

	for _, k := range keys {
		held[k] = true
	}
	g.reservedBy[runSessionID] = held

	return &Reservation{guard: g, runID: runSessionID, effects: effects}, nil
}

func (g *Guard) release(runSessionID string, effects IntendedEffectSet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	held := g.reservedBy[runSessionID]
	if held == nil {
		return
	}
	for _, k := range resourceKeys(effects) {
		delete(held, k)
	}
}

func resourceKeys(effects IntendedEffectSet) []string {
	var keys []string
	for _, f := range effects.Files {
		keys = append(keys, "file:"+f)
	}
	for _, s := range effects.Symbols {
		keys = append(keys, "symbol:"+s)
	}
	for _, m := range effects.GraphMutations {
		keys = append(keys, "graph:"+m)
	}
	return keys
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
