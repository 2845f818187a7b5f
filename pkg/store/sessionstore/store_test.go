package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func TestMemoryStore_SetGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	st := &contracts.SessionState{RunSessionID: "s1", State: contracts.StatePlanning, UpdatedAt: time.Now()}
	if err := store.Set(ctx, st); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.State != contracts.StatePlanning {
		t.Fatalf("expected round-tripped session state, got %+v", got)
	}
}

func TestMemoryStore_GetMissingReturnsNilNoError(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}
}

func TestMemoryStore_SetReturnsCopyNotAliasingCaller(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	st := &contracts.SessionState{RunSessionID: "s1", State: contracts.StatePlanning}
	_ = store.Set(ctx, st)

	st.State = contracts.StateCompleted
	got, _ := store.Get(ctx, "s1")
	if got.State != contracts.StatePlanning {
		t.Fatalf("expected stored copy unaffected by later caller mutation, got %s", got.State)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, &contracts.SessionState{RunSessionID: "s1"})

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected session to be gone after delete")
	}
}
