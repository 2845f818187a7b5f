package verbs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/collision"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/scope"
)

// findPlanNode looks up a node of the given kind by id in the session's
// accepted plan graph.
func findPlanNode(sess *contracts.SessionState, nodeID string, kind contracts.NodeKind) (*contracts.PlanNode, *contracts.DenyReason) {
	if sess.PlanGraph == nil {
		return nil, &contracts.DenyReason{Code: contracts.RejectPlanScopeViolation, Message: "no accepted plan graph"}
	}
	for i := range sess.PlanGraph.Nodes {
		n := &sess.PlanGraph.Nodes[i]
		if n.NodeID != nodeID {
			continue
		}
		if n.Kind != kind {
			return nil, &contracts.DenyReason{Code: contracts.RejectPlanScopeViolation, Message: fmt.Sprintf("node %q is not a %s node", nodeID, kind)}
		}
		return n, nil
	}
	return nil, &contracts.DenyReason{Code: contracts.RejectPlanScopeViolation, Message: fmt.Sprintf("node %q not found in accepted plan", nodeID)}
}

// approvedGatesOf collects every side_effect node's commitGateId from the
// accepted plan, the set execute_gated_side_effect checks external
// effects against.
func approvedGatesOf(sess *contracts.SessionState) []string {
	if sess.PlanGraph == nil {
		return nil
	}
	var gates []string
	for _, n := range sess.PlanGraph.Nodes {
		if n.Kind == contracts.NodeKindSideEffect && n.SideEffect != nil {
			gates = append(gates, n.SideEffect.CommitGateID)
		}
	}
	return gates
}

func markNodeComplete(sess *contracts.SessionState, nodeID string) {
	if sess.PlanGraphProgress == nil {
		return
	}
	if sess.PlanGraphProgress.CompletedNodeIDs == nil {
		sess.PlanGraphProgress.CompletedNodeIDs = map[string]bool{}
	}
	sess.PlanGraphProgress.CompletedNodeIDs[nodeID] = true
}

// handleApplyCodePatch executes a change node: scope check, collision
// reservation, write, artifact bundle, completion bookkeeping, released
// in that order (spec.md §4.12).
func handleApplyCodePatch(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	nodeID := argString(args, "node_id")
	targetFile := argString(args, "target_file")
	patch := argString(args, "patch")

	node, denyReason := findPlanNode(sess, nodeID, contracts.NodeKindChange)
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	if node.Change.TargetFile != targetFile {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanScopeViolation, Message: fmt.Sprintf("node %q targets %q, not %q", nodeID, node.Change.TargetFile, targetFile),
		}}}, nil
	}

	if sess.ContextPack != nil && !sess.ContextPack.HasFile(targetFile) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: fmt.Sprintf("target file %q has not been pulled into the context pack", targetFile),
		}}}, nil
	}
	if !d.Scope.AllowsFile(sess.ScopeAllowlist, targetFile) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanScopeViolation, Message: fmt.Sprintf("target file %q is not in the scope allowlist", targetFile),
		}}}, nil
	}

	reservation, denyReason := d.Collision.AssertAndReserve(ctx, sess.RunSessionID,
		collision.IntendedEffectSet{Files: []string{targetFile}}, approvedGatesOf(sess))
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	defer reservation.Release()

	full := filepath.Join(sess.WorktreeRoot, scope.Normalize(targetFile))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return contracts.VerbResult{}, err
	}
	if err := os.WriteFile(full, []byte(patch), 0o644); err != nil {
		return contracts.VerbResult{}, err
	}

	ref, err := attachArtifact(ctx, d, sess, "code_patch", []byte(patch))
	if err != nil {
		return contracts.VerbResult{}, err
	}

	markNodeComplete(sess, nodeID)
	return contracts.VerbResult{Result: map[string]interface{}{"artifact": ref}}, nil
}

// sandboxRunResult is run_sandboxed_code's result payload.
type sandboxRunResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
}

// handleRunSandboxedCode executes a validate node's WASI module inside
// the sandbox runtime (wazero), bounded by timeoutMs and memoryCapMb.
func handleRunSandboxedCode(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	nodeID := argString(args, "node_id")
	moduleRef := argString(args, "wasm_module_ref")
	timeoutMS := argInt(args, "timeout_ms", 5000)
	memCapMB := argInt(args, "memory_cap_mb", 64)

	node, denyReason := findPlanNode(sess, nodeID, contracts.NodeKindValidate)
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}

	reservation, denyReason := d.Collision.AssertAndReserve(ctx, sess.RunSessionID,
		collision.IntendedEffectSet{GraphMutations: []string{"validate:" + nodeID}}, approvedGatesOf(sess))
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	defer reservation.Release()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	result, err := runWASIModule(runCtx, d.Artifacts, moduleRef, memCapMB)
	if err != nil {
		return contracts.VerbResult{}, err
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	ref, err := attachArtifact(ctx, d, sess, "sandbox_run", resultJSON)
	if err != nil {
		return contracts.VerbResult{}, err
	}

	if result.ExitCode != 0 || result.TimedOut {
		return contracts.VerbResult{
			Result: map[string]interface{}{"run": result, "artifact": ref},
			DenyReasons: []contracts.DenyReason{{
				Code:    contracts.RejectPlanVerificationWeak,
				Message: fmt.Sprintf("validate node %q failed (exit=%d timed_out=%v)", nodeID, result.ExitCode, result.TimedOut),
			}},
		}, nil
	}

	if sess.PlanGraphProgress != nil {
		if sess.PlanGraphProgress.EligibleValidateNodeIDs == nil {
			sess.PlanGraphProgress.EligibleValidateNodeIDs = map[string]bool{}
		}
		sess.PlanGraphProgress.EligibleValidateNodeIDs[nodeID] = true
		for _, mapped := range node.Validate.MapsToNodeIDs {
			markNodeComplete(sess, mapped)
		}
	}
	markNodeComplete(sess, nodeID)

	return contracts.VerbResult{Result: map[string]interface{}{"run": result, "artifact": ref}}, nil
}

// handleExecuteGatedSideEffect performs an external side effect, gated by
// the accepted plan's approved commit-gate set (EXEC_UNGATED_SIDE_EFFECT
// otherwise).
func handleExecuteGatedSideEffect(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	nodeID := argString(args, "node_id")
	commitGateID := argString(args, "commit_gate_id")

	node, denyReason := findPlanNode(sess, nodeID, contracts.NodeKindSideEffect)
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	if node.SideEffect.CommitGateID != commitGateID {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code:    contracts.RejectExecUngatedSideEffect,
			Message: fmt.Sprintf("node %q is gated by %q, not %q", nodeID, node.SideEffect.CommitGateID, commitGateID),
		}}}, nil
	}

	reservation, denyReason := d.Collision.AssertAndReserve(ctx, sess.RunSessionID,
		collision.IntendedEffectSet{ExternalSideEffects: []string{node.SideEffect.CommitGateID}}, approvedGatesOf(sess))
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	defer reservation.Release()

	receipt := map[string]interface{}{
		"node_id":          nodeID,
		"side_effect_type": node.SideEffect.SideEffectType,
		"commit_gate_id":   node.SideEffect.CommitGateID,
		"executed_at":      d.Now(),
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	ref, err := attachArtifact(ctx, d, sess, "side_effect_receipt", receiptJSON)
	if err != nil {
		return contracts.VerbResult{}, err
	}

	markNodeComplete(sess, nodeID)
	return contracts.VerbResult{Result: map[string]interface{}{"artifact": ref}}, nil
}

// handleRunAutomationRecipe runs a named automation recipe, the same
// gated-execution shape as handleExecuteGatedSideEffect but keyed by a
// recipe id rather than a raw side-effect payload.
func handleRunAutomationRecipe(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	nodeID := argString(args, "node_id")
	recipeID := argString(args, "recipe_id")

	node, denyReason := findPlanNode(sess, nodeID, contracts.NodeKindSideEffect)
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}

	reservation, denyReason := d.Collision.AssertAndReserve(ctx, sess.RunSessionID,
		collision.IntendedEffectSet{ExternalSideEffects: []string{node.SideEffect.CommitGateID}}, approvedGatesOf(sess))
	if denyReason != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{*denyReason}}, nil
	}
	defer reservation.Release()

	receipt := map[string]interface{}{
		"node_id":   nodeID,
		"recipe_id": recipeID,
		"ran_at":    d.Now(),
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	ref, err := attachArtifact(ctx, d, sess, "automation_recipe_receipt", receiptJSON)
	if err != nil {
		return contracts.VerbResult{}, err
	}

	markNodeComplete(sess, nodeID)
	return contracts.VerbResult{Result: map[string]interface{}{"artifact": ref}}, nil
}
