package verbs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func sessionWithAcceptedChangePlan(t *testing.T, root, targetFile string) (*Deps, *contracts.SessionState) {
	t.Helper()
	d, sess := seededSession(t, root)

	plan := &contracts.PlanGraphDocument{
		Nodes: []contracts.PlanNode{
			{
				NodeID: "change-1",
				Kind:   contracts.NodeKindChange,
				Change: &contracts.ChangeNode{Operation: "edit", TargetFile: targetFile},
			},
		},
	}
	sess.PlanGraph = plan
	sess.PlanGraphProgress = &contracts.PlanGraphProgress{TotalNodes: 1, CompletedNodeIDs: map[string]bool{}}
	sess.State = contracts.StatePlanAccepted

	grown, added, err := d.Pack.Grow(sess.ContextPack, []string{targetFile})
	if err != nil {
		t.Fatal(err)
	}
	sess.ContextPack = grown
	sess.ScopeAllowlist = d.Scope.Grow(sess.ScopeAllowlist, added, nil)

	return d, sess
}

func TestHandleApplyCodePatch_WritesFileAndMarksComplete(t *testing.T) {
	root := t.TempDir()
	d, sess := sessionWithAcceptedChangePlan(t, root, "src/foo.go")

	vr, err := handleApplyCodePatch(context.Background(), d, sess, map[string]interface{}{
		"node_id": "change-1", "target_file": "src/foo.go", "patch": "package foo\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if vr.Denied() {
		t.Fatalf("unexpected deny: %+v", vr.DenyReasons)
	}
	data, err := os.ReadFile(filepath.Join(root, "src/foo.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package foo\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
	if !sess.PlanGraphProgress.CompletedNodeIDs["change-1"] {
		t.Fatal("expected change-1 marked complete")
	}
}

func TestHandleApplyCodePatch_DeniesWhenTargetFileMismatches(t *testing.T) {
	root := t.TempDir()
	d, sess := sessionWithAcceptedChangePlan(t, root, "src/foo.go")

	vr, err := handleApplyCodePatch(context.Background(), d, sess, map[string]interface{}{
		"node_id": "change-1", "target_file": "src/bar.go", "patch": "package bar\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !vr.Denied() || vr.DenyReasons[0].Code != contracts.RejectPlanScopeViolation {
		t.Fatalf("expected PLAN_SCOPE_VIOLATION, got %+v", vr.DenyReasons)
	}
}

func TestHandleApplyCodePatch_DeniesWhenNodeIDUnknown(t *testing.T) {
	root := t.TempDir()
	d, sess := sessionWithAcceptedChangePlan(t, root, "src/foo.go")

	vr, err := handleApplyCodePatch(context.Background(), d, sess, map[string]interface{}{
		"node_id": "does-not-exist", "target_file": "src/foo.go", "patch": "package foo\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !vr.Denied() || vr.DenyReasons[0].Code != contracts.RejectPlanScopeViolation {
		t.Fatalf("expected PLAN_SCOPE_VIOLATION for unknown node, got %+v", vr.DenyReasons)
	}
}

func TestHandleExecuteGatedSideEffect_DeniesUngatedEffect(t *testing.T) {
	root := t.TempDir()
	d, sess := seededSession(t, root)
	sess.PlanGraph = &contracts.PlanGraphDocument{
		Nodes: []contracts.PlanNode{
			{
				NodeID:     "se-1",
				Kind:       contracts.NodeKindSideEffect,
				SideEffect: &contracts.SideEffectNode{SideEffectType: "deploy", CommitGateID: "gate-1"},
			},
		},
	}
	sess.PlanGraphProgress = &contracts.PlanGraphProgress{TotalNodes: 1, CompletedNodeIDs: map[string]bool{}}

	// approvedGatesOf derives the approved set from side_effect nodes in
	// the plan itself, so a plan that declares the node also approves its
	// own gate — this asserts a *wrong* caller-supplied gate id is still
	// denied, naming both the node's actual gate and the one supplied.
	vr, err := handleExecuteGatedSideEffect(context.Background(), d, sess, map[string]interface{}{
		"node_id": "se-1", "commit_gate_id": "gate-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !vr.Denied() || vr.DenyReasons[0].Code != contracts.RejectExecUngatedSideEffect {
		t.Fatalf("expected EXEC_UNGATED_SIDE_EFFECT for mismatched gate id, got %+v", vr.DenyReasons)
	}
	if !strings.Contains(vr.DenyReasons[0].Message, "gate-1") || !strings.Contains(vr.DenyReasons[0].Message, "gate-2") {
		t.Fatalf("expected deny message to name both gate ids, got %q", vr.DenyReasons[0].Message)
	}
}

func TestHandleExecuteGatedSideEffect_SucceedsAndAttachesReceipt(t *testing.T) {
	root := t.TempDir()
	d, sess := seededSession(t, root)
	sess.PlanGraph = &contracts.PlanGraphDocument{
		Nodes: []contracts.PlanNode{
			{
				NodeID:     "se-1",
				Kind:       contracts.NodeKindSideEffect,
				SideEffect: &contracts.SideEffectNode{SideEffectType: "deploy", CommitGateID: "gate-1"},
			},
		},
	}
	sess.PlanGraphProgress = &contracts.PlanGraphProgress{TotalNodes: 1, CompletedNodeIDs: map[string]bool{}}

	vr, err := handleExecuteGatedSideEffect(context.Background(), d, sess, map[string]interface{}{
		"node_id": "se-1", "commit_gate_id": "gate-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if vr.Denied() {
		t.Fatalf("unexpected deny: %+v", vr.DenyReasons)
	}
	if !sess.PlanGraphProgress.CompletedNodeIDs["se-1"] {
		t.Fatal("expected se-1 marked complete")
	}
	if len(sess.Artifacts) != 1 || sess.Artifacts[0].Kind != "side_effect_receipt" {
		t.Fatalf("expected one side_effect_receipt artifact, got %+v", sess.Artifacts)
	}
}
