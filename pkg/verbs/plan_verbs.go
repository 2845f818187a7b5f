package verbs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// anchorsForPlan derives the domain anchors a submitted plan touches, so
// the enforcement bundle only pulls in memories relevant to the folders
// this plan actually changes. Anchors are folder-scoped
// ("anchor:<folder-path>"), not file-scoped, matching how memory records
// are written (spec.md §4.6).
func anchorsForPlan(plan *contracts.PlanGraphDocument) []string {
	seen := map[string]bool{}
	var anchors []string
	for _, n := range plan.Nodes {
		if n.Kind != contracts.NodeKindChange || n.Change == nil {
			continue
		}
		dir := filepath.ToSlash(filepath.Dir(n.Change.TargetFile))
		anchor := "anchor:" + dir
		if !seen[anchor] {
			seen[anchor] = true
			anchors = append(anchors, anchor)
		}
	}
	return anchors
}

// decodePlan converts the verb's loosely-typed "plan" argument into a
// contracts.PlanGraphDocument by round-tripping through JSON, which is
// already the argument's wire representation.
func decodePlan(args map[string]interface{}) (*contracts.PlanGraphDocument, error) {
	raw, ok := args["plan"]
	if !ok {
		return nil, fmt.Errorf("verbs: missing plan argument")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("verbs: re-marshal plan argument: %w", err)
	}
	var plan contracts.PlanGraphDocument
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("verbs: decode plan argument: %w", err)
	}
	return &plan, nil
}

// handleSubmitExecutionPlan decodes and validates the submitted plan
// graph. Acceptance transitions the session to PLAN_ACCEPTED and seeds
// per-node execution progress; rejection leaves the session in its
// current state, carrying every deny reason the six validator passes
// produced (spec.md §4.7: all applicable rejection codes, not just the
// first).
func handleSubmitExecutionPlan(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	plan, err := decodePlan(args)
	if err != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanMissingRequiredFields, Message: err.Error(),
		}}}, nil
	}

	var scopeViolations []contracts.DenyReason
	if sess.ScopeAllowlist != nil {
		for _, n := range plan.Nodes {
			if n.Kind != contracts.NodeKindChange || n.Change == nil {
				continue
			}
			if !d.Scope.AllowsFile(sess.ScopeAllowlist, n.Change.TargetFile) {
				scopeViolations = append(scopeViolations, contracts.DenyReason{
					Code:    contracts.RejectPlanScopeViolation,
					Message: fmt.Sprintf("change node %q targets %q, which is outside the session's scope allowlist", n.NodeID, n.Change.TargetFile),
				})
			}
		}
	}

	var packHash string
	if sess.ContextPack != nil {
		packHash = sess.ContextPack.Hash
	}
	activeMemories, err := d.Memory.FindActiveForAnchors(anchorsForPlan(plan))
	if err != nil {
		return contracts.VerbResult{}, fmt.Errorf("verbs: resolve active memories for plan: %w", err)
	}
	// Graph-policy nodes and migration rules are not resolved here (nil is
	// passed for both), so the bundle carries only the memory plan rules
	// relevant to the anchors this plan touches.
	sess.EnforcementBundle = d.Enforcement.Build(packHash, activeMemories, nil, nil)

	reasons := d.Validator.Validate(plan, sess.EnforcementBundle)
	reasons = append(reasons, scopeViolations...)

	if len(reasons) > 0 {
		return contracts.VerbResult{DenyReasons: reasons}, nil
	}

	progress := &contracts.PlanGraphProgress{
		TotalNodes:              len(plan.Nodes),
		CompletedNodeIDs:        map[string]bool{},
		EligibleValidateNodeIDs: map[string]bool{},
	}
	sess.PlanGraph = plan
	sess.PlanGraphProgress = progress

	return contracts.VerbResult{
		Result:        map[string]interface{}{"accepted_node_count": len(plan.Nodes)},
		StateOverride: stateOverride(contracts.StatePlanAccepted),
	}, nil
}

// packDelta reports what an escalation grew the session's pack by, so a
// planning agent can see exactly what new evidence became available.
type packDelta struct {
	AddedFiles   []string `json:"addedFiles"`
	AddedSymbols []string `json:"addedSymbols"`
	HashChanged  bool     `json:"hashChanged"`
	NewHash      string   `json:"newHash"`
}

// handleRequestEvidenceGuidance escalates a topic a plan submission was
// rejected for insufficient evidence on: it searches the code index for
// material related to topic and monotonically grows the session's
// context pack with whatever it finds, returning the resulting
// packDelta (spec.md §4.12). The pack only ever grows, never shrinks or
// resets, matching pack.Service.Grow's monotonicity contract.
func handleRequestEvidenceGuidance(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	topic := argString(args, "topic")
	policy := d.Profile.EvidencePolicy

	var delta packDelta
	if sess.ContextPack != nil {
		beforeHash := sess.ContextPack.Hash

		lexHits, err := d.Indexer.SearchLexical(ctx, topic, 10)
		if err != nil {
			return contracts.VerbResult{}, err
		}
		symHits, err := d.Indexer.SearchSymbol(ctx, topic, 5)
		if err != nil {
			return contracts.VerbResult{}, err
		}

		var files []string
		var symbols []string
		for _, h := range lexHits {
			files = append(files, h.File)
		}
		for _, h := range symHits {
			files = append(files, h.File)
			if h.Symbol != "" {
				symbols = append(symbols, h.Symbol)
			}
		}

		if len(files) > 0 {
			grown, added, err := d.Pack.Grow(sess.ContextPack, files)
			if err != nil {
				return contracts.VerbResult{}, err
			}
			sess.ContextPack = grown
			sess.ScopeAllowlist = d.Scope.Grow(sess.ScopeAllowlist, added, symbols)
			delta.AddedFiles = added
		}
		delta.AddedSymbols = symbols
		delta.NewHash = sess.ContextPack.Hash
		delta.HashChanged = sess.ContextPack.Hash != beforeHash
	}

	return contracts.VerbResult{Result: map[string]interface{}{
		"topic":      topic,
		"policy":     policy,
		"pack_delta": delta,
	}}, nil
}
