// Package planvalidator implements the Plan Graph Validator: six
// ordered passes over a submitted PlanGraphDocument, each contributing to
// a deduplicated rejection-code list. The plan is accepted iff the list is
// empty.
package planvalidator

import (
	"fmt"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/enforcement"
	"github.com/mindburn-labs/turnctl/pkg/evidence"
)

// Validator runs the six ordered passes.
type Validator struct {
	cel *enforcement.CELEvaluator
	codemods *enforcement.CodemodCatalog
}

// New constructs a Validator. cel may be nil, in which case memory/graph
// rule conditions are treated as always-applicable (condition omitted is
// the common case; a nil evaluator only matters when a rule actually sets
// a CEL condition string).
func New(cel *enforcement.CELEvaluator, codemods *enforcement.CodemodCatalog) *Validator {
	return &Validator{cel: cel, codemods: codemods}
}

// Validate runs all six passes and returns the deduplicated, ordered list
// of deny reasons. An empty result means the plan is accepted.
func (v *Validator) Validate(plan *contracts.PlanGraphDocument, bundle *contracts.EnforcementBundle) []contracts.DenyReason {
	var reasons []contracts.DenyReason
	seen := map[contracts.RejectionCode]bool{}

	add := func(code contracts.RejectionCode, msg string) {
		if seen[code] {
			return
		}
		seen[code] = true
		reasons = append(reasons, contracts.DenyReason{Code: code, Message: msg})
	}

	v.passEnvelope(plan, add)
	nodesByID := v.passGraph(plan, add)
	v.passStrategyReasons(plan, add)
	v.passPerNode(plan, add)
	if bundle != nil {
		v.passMemoryRules(plan.Nodes, bundle.MemoryPlanRules, add)
		v.passGraphPolicyRules(plan.Nodes, bundle.GraphPolicyRules, add)
	}
	_ = nodesByID

	return reasons
}

type addFunc func(code contracts.RejectionCode, msg string)

// passEnvelope is pass 1: required envelope strings non-empty, source
// trace refs present, strategy reasons present.
func (v *Validator) passEnvelope(plan *contracts.PlanGraphDocument, add addFunc) {
	required := map[string]string{
		"work_id":               plan.WorkID,
		"agent_id":              plan.AgentID,
		"run_session_id":        plan.RunSessionID,
		"repo_snapshot_id":      plan.RepoSnapshotID,
		"context_pack_ref":      plan.ContextPackRef,
		"context_pack_hash":     plan.ContextPackHash,
		"knowledge_strategy_id": plan.KnowledgeStrategyID,
		"plan_fingerprint":      plan.PlanFingerprint,
		"schema_version":        plan.SchemaVersion,
	}
	missing := false
	for _, val := range required {
		if val == "" {
			missing = true
		}
	}
	if missing {
		add(contracts.RejectPlanMissingRequiredFields, "one or more required envelope fields are empty")
	}
	if len(plan.SourceTraceRefs) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, "sourceTraceRefs must be non-empty")
	}
	if len(plan.StrategyReasons) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, "knowledgeStrategyReasons must be non-empty")
	}
}

// passGraph is pass 2: unique node ids, dependsOn refs exist, no cycles,
// every change is mapped by a validate node, every side_effect depends on
// a validate node.
func (v *Validator) passGraph(plan *contracts.PlanGraphDocument, add addFunc) map[string]*contracts.PlanNode {
	byID := make(map[string]*contracts.PlanNode, len(plan.Nodes))
	for i := range plan.Nodes {
		n := &plan.Nodes[i]
		if _, dup := byID[n.NodeID]; dup {
			add(contracts.RejectPlanNotAtomic, fmt.Sprintf("duplicate nodeId %q", n.NodeID))
			continue
		}
		byID[n.NodeID] = n
	}

	for _, n := range plan.Nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				add(contracts.RejectPlanNotAtomic, fmt.Sprintf("node %q depends on unknown node %q", n.NodeID, dep))
			}
		}
	}

	if hasCycle(plan.Nodes) {
		add(contracts.RejectPlanNotAtomic, "plan graph contains a dependency cycle")
	}

	mappedChanges := map[string]bool{}
	for _, n := range plan.Nodes {
		if n.Kind == contracts.NodeKindValidate && n.Validate != nil {
			for _, mapped := range n.Validate.MapsToNodeIDs {
				mappedChanges[mapped] = true
			}
		}
	}
	for _, n := range plan.Nodes {
		if n.Kind == contracts.NodeKindChange && !mappedChanges[n.NodeID] {
			add(contracts.RejectPlanNotAtomic, fmt.Sprintf("change node %q is not mapped by any validate node", n.NodeID))
		}
	}

	for _, n := range plan.Nodes {
		if n.Kind != contracts.NodeKindSideEffect {
			continue
		}
		dependsOnValidate := false
		for _, dep := range n.DependsOn {
			if other, ok := byID[dep]; ok && other.Kind == contracts.NodeKindValidate {
				dependsOnValidate = true
			}
		}
		if !dependsOnValidate {
			add(contracts.RejectPlanNotAtomic, fmt.Sprintf("side_effect node %q must depend on a validate node", n.NodeID))
		}
	}

	return byID
}

// hasCycle runs a DFS three-color cycle check over the dependsOn graph.
func hasCycle(nodes []contracts.PlanNode) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		color[n.NodeID] = white
		adj[n.NodeID] = n.DependsOn
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range adj[id] {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, n := range nodes {
		if color[n.NodeID] == white {
			if visit(n.NodeID) {
				return true
			}
		}
	}
	return false
}

// passStrategyReasons is pass 3: every {reason, evidenceRef} fully populated.
func (v *Validator) passStrategyReasons(plan *contracts.PlanGraphDocument, add addFunc) {
	for _, r := range plan.StrategyReasons {
		if r.Reason == "" || r.EvidenceRef == "" {
			add(contracts.RejectPlanStrategyMismatch, "a knowledgeStrategyReasons entry is missing reason or evidenceRef")
			return
		}
	}
}

// passPerNode is pass 4: kind-specific field and evidence checks.
func (v *Validator) passPerNode(plan *contracts.PlanGraphDocument, add addFunc) {
	migrationStrategy := plan.KnowledgeStrategyID == "migration_adp_to_sdf"
	policy := plan.EvidencePolicy
	if policy.MinDistinctSources == 0 {
		policy = contracts.DefaultEvidencePolicy()
	}

	for _, n := range plan.Nodes {
		checkAtomicityBoundary(n, add)
		switch n.Kind {
		case contracts.NodeKindChange:
			v.checkChangeNode(n, migrationStrategy, policy, add)
		case contracts.NodeKindValidate:
			checkValidateNode(n, add)
		case contracts.NodeKindEscalate:
			checkEscalateNode(n, add)
		case contracts.NodeKindSideEffect:
			checkSideEffectNode(n, add)
		}
	}
}

// checkAtomicityBoundary enforces that every node scopes its acceptance
// criteria and module footprint: an accepted plan never leaves a node's
// blast radius implicit.
func checkAtomicityBoundary(n contracts.PlanNode, add addFunc) {
	b := n.AtomicityBoundary
	if len(b.InScopeAcceptanceCriteriaIDs) == 0 || len(b.InScopeModules) == 0 {
		add(contracts.RejectPlanNotAtomic, fmt.Sprintf("node %q: atomicityBoundary.inScopeAcceptanceCriteriaIds and inScopeModules must both be non-empty", n.NodeID))
	}
}

func (v *Validator) checkChangeNode(n contracts.PlanNode, migrationStrategy bool, policy contracts.EvidencePolicy, add addFunc) {
	c := n.Change
	if c == nil {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("change node %q missing change payload", n.NodeID))
		return
	}
	if c.TargetFile == "" || c.WhyThisFile == "" || c.EditIntent == "" {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("change node %q missing common fields", n.NodeID))
	}
	if len(c.TargetSymbols) == 0 && !c.IsSymbolCreation() {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("change node %q: targetSymbols must be non-empty unless creating a symbol", n.NodeID))
	}
	if len(c.EscalateIf) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("change node %q: escalateIf must be non-empty", n.NodeID))
	}
	if len(c.ArtifactRefs) == 0 {
		add(contracts.RejectPlanMissingArtifactRef, fmt.Sprintf("change node %q: artifactRefs must be non-empty", n.NodeID))
	}
	if len(c.VerificationHooks) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("change node %q: verificationHooks must be non-empty", n.NodeID))
	}

	evidenceResult := evidence.Evaluate(c, policy)
	if !evidenceResult.Sufficient {
		add(contracts.RejectPlanEvidenceInsufficient, fmt.Sprintf("change node %q: insufficient evidence (%v)", n.NodeID, evidenceResult.FailedBuckets))
	}

	if v.codemods != nil {
		for _, ref := range append(append([]string{}, c.PolicyRefs...), c.Citations...) {
			if isCodemodRef(ref) && !v.codemods.Has(ref) {
				add(contracts.RejectPlanPolicyViolation, fmt.Sprintf("change node %q cites unknown codemod %q", n.NodeID, ref))
			}
		}
	}

	for _, ref := range c.Citations {
		if isAttachmentRef(ref) && !contains(c.ArtifactRefs, ref) {
			add(contracts.RejectPlanMissingArtifactRef, fmt.Sprintf("change node %q cites attachment %q not present in artifactRefs", n.NodeID, ref))
		}
	}

	if migrationStrategy {
		hasMigrationRef := false
		for _, ref := range append(append([]string{}, c.PolicyRefs...), c.Citations...) {
			if isMigrationRef(ref) {
				hasMigrationRef = true
				break
			}
		}
		if !hasMigrationRef {
			add(contracts.RejectPlanMigrationRuleMissing, fmt.Sprintf("change node %q must cite a migration: rule under migration_adp_to_sdf strategy", n.NodeID))
		}
	}
}

func checkValidateNode(n contracts.PlanNode, add addFunc) {
	val := n.Validate
	if val == nil {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("validate node %q missing validate payload", n.NodeID))
		return
	}
	if len(val.VerificationHooks) == 0 || len(val.MapsToNodeIDs) == 0 || len(val.SuccessCriteria) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("validate node %q: verificationHooks, mapsToNodeIds, successCriteria all required", n.NodeID))
	}
}

func checkEscalateNode(n contracts.PlanNode, add addFunc) {
	esc := n.Escalate
	if esc == nil {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("escalate node %q missing escalate payload", n.NodeID))
		return
	}
	for _, re := range esc.RequestedEvidence {
		if !contracts.ValidRequestedEvidenceTypes[re.Type] {
			add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("escalate node %q: invalid requestedEvidence type %q", n.NodeID, re.Type))
		}
	}
	if len(esc.BlockingReasons) == 0 {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("escalate node %q: blockingReasons must be non-empty", n.NodeID))
	}
}

func checkSideEffectNode(n contracts.PlanNode, add addFunc) {
	se := n.SideEffect
	if se == nil || se.SideEffectType == "" || se.SideEffectPayloadRef == "" || se.CommitGateID == "" {
		add(contracts.RejectPlanMissingRequiredFields, fmt.Sprintf("side_effect node %q: sideEffectType, sideEffectPayloadRef, commitGateId all required", n.NodeID))
	}
}

// passMemoryRules is pass 5.
func (v *Validator) passMemoryRules(nodes []contracts.PlanNode, rules []contracts.PlanRulePayload, add addFunc) {
	for _, rule := range rules {
		if v.conditionFailsToApply(rule.Condition, nodes) {
			continue
		}
		for _, required := range rule.RequiredSteps {
			if !enforcement.StepSatisfied(required, nodes) {
				add(contracts.RejectionCode(rule.DenyCode), fmt.Sprintf("unmet plan-rule required step: kind=%s pattern=%q", required.Kind, required.TargetPattern))
			}
		}
	}
}

// passGraphPolicyRules is pass 6, identical matching logic, ephemeral rules.
func (v *Validator) passGraphPolicyRules(nodes []contracts.PlanNode, rules []contracts.GraphPolicyRule, add addFunc) {
	for _, rule := range rules {
		if v.conditionFailsToApply(rule.Condition, nodes) {
			continue
		}
		for _, required := range rule.RequiredSteps {
			if !enforcement.StepSatisfied(required, nodes) {
				add(contracts.RejectionCode(rule.DenyCode), fmt.Sprintf("unmet graph-policy required step: kind=%s pattern=%q", required.Kind, required.TargetPattern))
			}
		}
	}
}

// conditionFailsToApply evaluates an optional CEL condition scoped to the
// whole plan. An empty condition always applies. A missing evaluator
// treats any non-empty condition as applying (fail closed).
func (v *Validator) conditionFailsToApply(condition string, nodes []contracts.PlanNode) bool {
	if condition == "" {
		return false
	}
	if v.cel == nil {
		return false
	}
	applies, _ := v.cel.Eval(condition, map[string]interface{}{
		"plan": map[string]interface{}{"node_count": len(nodes)},
	})
	return !applies
}

func isCodemodRef(ref string) bool { return hasPrefix(ref, "codemod:") }
func isAttachmentRef(ref string) bool {
	return hasPrefix(ref, "inbox:") || hasPrefix(ref, "attachment:")
}
func isMigrationRef(ref string) bool { return hasPrefix(ref, "migration:") }

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
