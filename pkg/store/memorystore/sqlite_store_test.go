package memorystore

import (
	"testing"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_PutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	rec := &contracts.MemoryRecord{
		ID:              "mem-1",
		EnforcementType: contracts.EnforcementFewShot,
		State:           contracts.MemoryPending,
		DomainAnchorIDs: []string{"anchor:x"},
		CreatedAt:       time.Now(),
	}
	if err := store.Put(rec); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get("mem-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.ID != "mem-1" || got.State != contracts.MemoryPending {
		t.Fatalf("expected round-tripped record, got %+v", got)
	}
}

func TestSQLiteStore_PutUpserts(t *testing.T) {
	store := openTestStore(t)

	rec := &contracts.MemoryRecord{ID: "mem-1", State: contracts.MemoryPending}
	_ = store.Put(rec)
	rec.State = contracts.MemoryApproved
	_ = store.Put(rec)

	got, _, err := store.Get("mem-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != contracts.MemoryApproved {
		t.Fatalf("expected upserted state, got %s", got.State)
	}

	all, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected upsert not to duplicate rows, got %d", len(all))
	}
}

func TestSQLiteStore_GetMissingReturnsFalse(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for missing record")
	}
}

func TestSQLiteStore_FrictionAndChangelogAppendOnly(t *testing.T) {
	store := openTestStore(t)

	if err := store.AppendFriction(contracts.FrictionEvent{ID: "f1", OccurredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendFriction(contracts.FrictionEvent{ID: "f2", OccurredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	friction, err := store.Friction()
	if err != nil {
		t.Fatal(err)
	}
	if len(friction) != 2 {
		t.Fatalf("expected 2 friction events, got %d", len(friction))
	}

	if err := store.AppendChangelog(contracts.ChangelogEntry{MemoryID: "mem-1", ToState: contracts.MemoryApproved, At: time.Now()}); err != nil {
		t.Fatal(err)
	}
	log, err := store.Changelog()
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].MemoryID != "mem-1" {
		t.Fatalf("expected one changelog entry, got %v", log)
	}
}
