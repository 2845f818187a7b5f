package verbs

import (
	"context"
	"testing"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/indexer"
	"github.com/mindburn-labs/turnctl/pkg/memory"
)

func minimalAcceptablePlan() map[string]interface{} {
	return map[string]interface{}{
		"work_id":               "work-1",
		"agent_id":              "agent-1",
		"run_session_id":        "s1",
		"repo_snapshot_id":      "snap-1",
		"context_pack_ref":      "pack:s1",
		"context_pack_hash":     "hash-1",
		"knowledge_strategy_id": "ui_feature",
		"plan_fingerprint":      "fp-1",
		"schema_version":        "1.0.0",
		"source_trace_refs":     []string{"trace:1"},
		"knowledge_strategy_reasons": []map[string]interface{}{
			{"reason": "mentions aggrid", "evidence_ref": "req:1"},
		},
		"evidence_policy": map[string]interface{}{
			"min_distinct_sources":          2,
			"allow_single_source_with_guard": true,
		},
		"nodes": []map[string]interface{}{
			{
				"node_id": "change-1",
				"kind":    "change",
				"atomicity_boundary": map[string]interface{}{
					"in_scope_acceptance_criteria_ids": []string{"ac-1"},
					"in_scope_modules":                 []string{"src/foo"},
				},
				"change": map[string]interface{}{
					"operation":          "edit",
					"target_file":        "src/foo.go",
					"target_symbols":     []string{"Foo"},
					"why_this_file":      "implements the feature",
					"edit_intent":        "add validation",
					"escalate_if":        []string{"tests fail"},
					"citations":          []string{"req:1"},
					"code_evidence":      []string{"src/foo.go:10"},
					"artifact_refs":      []string{"artifact:1"},
					"verification_hooks": []string{"go test ./..."},
				},
			},
			{
				"node_id":    "validate-1",
				"kind":       "validate",
				"depends_on": []string{"change-1"},
				"atomicity_boundary": map[string]interface{}{
					"in_scope_acceptance_criteria_ids": []string{"ac-1"},
					"in_scope_modules":                 []string{"src/foo"},
				},
				"validate": map[string]interface{}{
					"verification_hooks": []string{"go test ./..."},
					"maps_to_node_ids":    []string{"change-1"},
					"success_criteria":    []string{"tests pass"},
				},
			},
		},
	}
}

func TestAnchorsForPlan_DerivesFolderAnchorsFromChangeNodes(t *testing.T) {
	plan := &contracts.PlanGraphDocument{
		Nodes: []contracts.PlanNode{
			{Kind: contracts.NodeKindChange, Change: &contracts.ChangeNode{TargetFile: "src/foo/bar.go"}},
			{Kind: contracts.NodeKindChange, Change: &contracts.ChangeNode{TargetFile: "src/foo/baz.go"}},
			{Kind: contracts.NodeKindValidate, Validate: &contracts.ValidateNode{}},
		},
	}
	anchors := anchorsForPlan(plan)
	if len(anchors) != 1 || anchors[0] != "anchor:src/foo" {
		t.Fatalf("expected single deduped folder anchor, got %v", anchors)
	}
}

func TestHandleSubmitExecutionPlan_DecodeFailureDeniesMissingFields(t *testing.T) {
	d := newTestDeps(t, t.TempDir())
	sess := newTestSession("s1")

	vr, err := handleSubmitExecutionPlan(context.Background(), d, sess, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if !vr.Denied() || vr.DenyReasons[0].Code != contracts.RejectPlanMissingRequiredFields {
		t.Fatalf("expected PLAN_MISSING_REQUIRED_FIELDS, got %+v", vr.DenyReasons)
	}
}

func TestHandleSubmitExecutionPlan_DeniesScopeViolationOutsideAllowlist(t *testing.T) {
	d := newTestDeps(t, t.TempDir())
	sess := newTestSession("s1")
	sess.ScopeAllowlist = &contracts.ScopeAllowlist{Files: []string{"some/other/file.go"}}

	vr, err := handleSubmitExecutionPlan(context.Background(), d, sess, map[string]interface{}{"plan": minimalAcceptablePlan()})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range vr.DenyReasons {
		if r.Code == contracts.RejectPlanScopeViolation {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a PLAN_SCOPE_VIOLATION deny reason, got %+v", vr.DenyReasons)
	}
}

func TestHandleSubmitExecutionPlan_AcceptsAndPopulatesEnforcementBundle(t *testing.T) {
	d := newTestDeps(t, t.TempDir())
	sess := newTestSession("s1")
	sess.ScopeAllowlist = &contracts.ScopeAllowlist{Files: []string{"src/foo.go"}}
	pk, err := d.Pack.Build("pack:s1", []string{"src/foo.go"})
	if err != nil {
		t.Fatal(err)
	}
	sess.ContextPack = pk

	rec, err := d.Memory.CreateFromFriction(memoryFixtureInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Memory.Transition(rec.ID, contracts.MemoryApproved, "test fixture"); err != nil {
		t.Fatal(err)
	}

	vr, err := handleSubmitExecutionPlan(context.Background(), d, sess, map[string]interface{}{"plan": minimalAcceptablePlan()})
	if err != nil {
		t.Fatal(err)
	}
	if vr.Denied() {
		t.Fatalf("expected acceptance, got deny reasons %+v", vr.DenyReasons)
	}
	if vr.StateOverride == nil || *vr.StateOverride != contracts.StatePlanAccepted {
		t.Fatalf("expected transition to PLAN_ACCEPTED, got %+v", vr.StateOverride)
	}
	if sess.PlanGraph == nil || sess.PlanGraphProgress == nil {
		t.Fatal("expected plan graph and progress to be seeded")
	}
	if sess.EnforcementBundle == nil {
		t.Fatal("expected EnforcementBundle to be populated from active memories")
	}
	if sess.EnforcementBundle.BuiltFromPackHash != sess.ContextPack.Hash {
		t.Fatalf("expected bundle stamped with the session's pack hash, got %q want %q",
			sess.EnforcementBundle.BuiltFromPackHash, sess.ContextPack.Hash)
	}
}

func TestHandleRequestEvidenceGuidance_GrowsPackMonotonically(t *testing.T) {
	d := newTestDeps(t, t.TempDir())
	sess := newTestSession("s1")
	pk, err := d.Pack.Build("pack:s1", []string{"src/f1.go"})
	if err != nil {
		t.Fatal(err)
	}
	sess.ContextPack = pk
	d.Indexer = indexer.NewInMemoryIndexer(
		[]indexer.SymbolHeader{{Symbol: "Frobnicate", File: "src/f2.go"}},
		[]string{"src/f2.go"}, nil, nil, nil, nil,
	)

	vr, err := handleRequestEvidenceGuidance(context.Background(), d, sess, map[string]interface{}{"topic": "f2"})
	if err != nil {
		t.Fatal(err)
	}
	if vr.Denied() {
		t.Fatalf("unexpected deny: %+v", vr.DenyReasons)
	}
	result, ok := vr.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map result, got %T", vr.Result)
	}
	delta, ok := result["pack_delta"].(packDelta)
	if !ok {
		t.Fatalf("expected a packDelta result, got %T", result["pack_delta"])
	}
	if len(delta.AddedFiles) != 1 || delta.AddedFiles[0] != "src/f2.go" {
		t.Fatalf("expected src/f2.go added, got %v", delta.AddedFiles)
	}
	if !delta.HashChanged {
		t.Fatal("expected hashChanged=true when a new file is pulled in")
	}
	if delta.NewHash != sess.ContextPack.Hash {
		t.Fatalf("expected newHash to match the session's updated pack hash, got %q vs %q", delta.NewHash, sess.ContextPack.Hash)
	}
	if !sess.ContextPack.HasFile("src/f2.go") {
		t.Fatal("expected session's context pack to now include src/f2.go")
	}

	// A second call resolving nothing new leaves the pack untouched.
	beforeHash := sess.ContextPack.Hash
	vr2, err := handleRequestEvidenceGuidance(context.Background(), d, sess, map[string]interface{}{"topic": "does-not-exist"})
	if err != nil {
		t.Fatal(err)
	}
	delta2 := vr2.Result.(map[string]interface{})["pack_delta"].(packDelta)
	if len(delta2.AddedFiles) != 0 || delta2.HashChanged {
		t.Fatalf("expected no growth on a miss, got %+v", delta2)
	}
	if sess.ContextPack.Hash != beforeHash {
		t.Fatal("expected pack hash unchanged when nothing new is resolved")
	}
}

func memoryFixtureInput() memory.CreateFromFrictionInput {
	return memory.CreateFromFrictionInput{
		DomainAnchorIDs: []string{"anchor:src/foo"},
		EnforcementType: contracts.EnforcementPlanRule,
		PlanRule: &contracts.PlanRulePayload{
			RequiredSteps: []contracts.RequiredStep{{Kind: contracts.NodeKindValidate}},
		},
		RunSessionID: "s1",
		Detail:       "always validate changes under src/foo",
	}
}
