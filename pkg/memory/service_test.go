package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func defaultPolicy() AutoPromotionPolicy {
	return AutoPromotionPolicy{
		ContestWindow:        24 * time.Hour,
		ExpiryWindow:         30 * 24 * time.Hour,
		AutoPromotableTypes:  []contracts.EnforcementType{contracts.EnforcementPlanRule},
		OverrideInitialState: contracts.MemoryApproved,
	}
}

func TestCreateFromFriction_StartsPendingAndLogsFriction(t *testing.T) {
	store := NewInMemoryStore()
	svc := New(store, defaultPolicy())

	rec, err := svc.CreateFromFriction(CreateFromFrictionInput{
		Trigger:         contracts.TriggerRejectionPattern,
		Phase:           contracts.PhasePlanning,
		DomainAnchorIDs: []string{"anchor:src/foo"},
		RejectionCodes:  []string{"PLAN_SCOPE_VIOLATION"},
		EnforcementType: contracts.EnforcementFewShot,
		RunSessionID:    "run-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != contracts.MemoryPending {
		t.Fatalf("expected pending state, got %s", rec.State)
	}

	friction, err := store.Friction()
	if err != nil {
		t.Fatal(err)
	}
	if len(friction) != 1 {
		t.Fatalf("expected one friction event, got %d", len(friction))
	}
	if rec.SourceFriction != friction[0].ID {
		t.Fatal("expected record to link back to the friction event it was created from")
	}
}

func TestCreateFromHumanOverride_UsesConfiguredInitialState(t *testing.T) {
	store := NewInMemoryStore()
	svc := New(store, defaultPolicy())

	rec, err := svc.CreateFromHumanOverride(CreateFromHumanOverrideInput{
		DomainAnchorIDs: []string{"anchor:src/foo"},
		EnforcementType: contracts.EnforcementPlanRule,
		PlanRule:        &contracts.PlanRulePayload{Condition: "true", DenyCode: "PLAN_POLICY_VIOLATION"},
		CreatedBy:       "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != contracts.MemoryApproved {
		t.Fatalf("expected approved state, got %s", rec.State)
	}
}

func TestFindActiveForAnchors_FiltersByStateAndAnchorIntersection(t *testing.T) {
	store := NewInMemoryStore()
	svc := New(store, defaultPolicy())

	active, _ := svc.CreateFromHumanOverride(CreateFromHumanOverrideInput{
		DomainAnchorIDs: []string{"anchor:src/foo"},
		EnforcementType: contracts.EnforcementInformational,
	})
	pending, _ := svc.CreateFromFriction(CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:src/foo"},
		EnforcementType: contracts.EnforcementInformational,
	})
	unrelated, _ := svc.CreateFromHumanOverride(CreateFromHumanOverrideInput{
		DomainAnchorIDs: []string{"anchor:src/bar"},
		EnforcementType: contracts.EnforcementInformational,
	})

	found, err := svc.FindActiveForAnchors([]string{"anchor:src/foo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != active.ID {
		t.Fatalf("expected only the active, anchor-matching record, got %v", found)
	}
	_ = pending
	_ = unrelated
}

func TestRunAutoPromotion_PromotesPendingAfterContestWindow(t *testing.T) {
	store := NewInMemoryStore()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := New(store, defaultPolicy(), WithClock(fixedClock(created)))

	rec, err := svc.CreateFromFriction(CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:x"},
		EnforcementType: contracts.EnforcementPlanRule,
	})
	if err != nil {
		t.Fatal(err)
	}

	later := created.Add(25 * time.Hour)
	changed, err := svc.RunAutoPromotion(later)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].ID != rec.ID {
		t.Fatalf("expected the pending record to be promoted, got %v", changed)
	}
	if changed[0].State != contracts.MemoryProvisional {
		t.Fatalf("expected provisional, got %s", changed[0].State)
	}
}

func TestRunAutoPromotion_DoesNotPromoteNonAutoPromotableType(t *testing.T) {
	store := NewInMemoryStore()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := defaultPolicy()
	policy.AutoPromotableTypes = []contracts.EnforcementType{contracts.EnforcementPlanRule}
	svc := New(store, policy, WithClock(fixedClock(created)))

	_, err := svc.CreateFromFriction(CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:x"},
		EnforcementType: contracts.EnforcementInformational,
	})
	if err != nil {
		t.Fatal(err)
	}

	changed, err := svc.RunAutoPromotion(created.Add(48 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no promotions for a non-auto-promotable type, got %v", changed)
	}
}

func TestRunAutoPromotion_ExpiresProvisionalAfterExpiryWindow(t *testing.T) {
	store := NewInMemoryStore()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := New(store, defaultPolicy(), WithClock(fixedClock(created)))

	rec, _ := svc.CreateFromFriction(CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:x"},
		EnforcementType: contracts.EnforcementPlanRule,
	})
	if _, err := svc.Transition(rec.ID, contracts.MemoryProvisional, "manual"); err != nil {
		t.Fatal(err)
	}

	changed, err := svc.RunAutoPromotion(created.Add(31 * 24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].State != contracts.MemoryExpired {
		t.Fatalf("expected expiry, got %v", changed)
	}
}

func TestIngestOverrideFiles_ProcessesAndRenames(t *testing.T) {
	dir := t.TempDir()
	store := NewInMemoryStore()
	svc := New(store, defaultPolicy())

	ov := overrideFile{
		DomainAnchorIDs: []string{"anchor:x"},
		EnforcementType: contracts.EnforcementInformational,
		CreatedBy:       "bob",
	}
	data, _ := json.Marshal(ov)
	path := filepath.Join(dir, "override1.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	created, err := svc.IngestOverrideFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one record created, got %d", len(created))
	}
	if _, err := os.Stat(path + ".processed"); err != nil {
		t.Fatalf("expected override file to be renamed with .processed suffix: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected original override file to no longer exist")
	}
}

func TestIngestOverrideFiles_MissingDirReturnsEmpty(t *testing.T) {
	svc := New(NewInMemoryStore(), defaultPolicy())
	created, err := svc.IngestOverrideFiles("/nonexistent/does/not/exist")
	if err != nil {
		t.Fatal(err)
	}
	if created != nil {
		t.Fatalf("expected nil, got %v", created)
	}
}

func TestScaffoldFewShot_CreatesPendingWithTODOPlaceholders(t *testing.T) {
	svc := New(NewInMemoryStore(), defaultPolicy())
	rec, err := svc.ScaffoldFewShot([]string{"anchor:x"}, "bad code", []string{"PLAN_EVIDENCE_INSUFFICIENT"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != contracts.MemoryPending {
		t.Fatalf("expected pending, got %s", rec.State)
	}
	if rec.FewShot == nil || rec.FewShot.Before != "bad code" || rec.FewShot.After != "TODO" {
		t.Fatalf("expected scaffolded few-shot payload, got %+v", rec.FewShot)
	}
}

func TestExportAsGraphSeed_WritesActiveNodesAndEdgesOnly(t *testing.T) {
	store := NewInMemoryStore()
	svc := New(store, defaultPolicy())

	active, _ := svc.CreateFromHumanOverride(CreateFromHumanOverrideInput{
		DomainAnchorIDs: []string{"anchor:a", "anchor:b"},
		EnforcementType: contracts.EnforcementInformational,
	})
	_, _ = svc.CreateFromFriction(CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:c"},
		EnforcementType: contracts.EnforcementInformational,
	})

	outPath := filepath.Join(t.TempDir(), "seed.json")
	seed, err := svc.ExportAsGraphSeed(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(seed.Nodes) != 1 || seed.Nodes[0].ID != active.ID {
		t.Fatalf("expected only the active record exported, got %v", seed.Nodes)
	}
	if len(seed.Edges) != 2 {
		t.Fatalf("expected one APPLIES_TO edge per anchor, got %d", len(seed.Edges))
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected graph seed file to be written: %v", err)
	}
}
