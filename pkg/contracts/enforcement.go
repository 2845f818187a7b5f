package contracts

// GraphPolicyEnforcement discriminates how a grounded policy node enforces.
type GraphPolicyEnforcement string

const (
	EnforcementHardDeny GraphPolicyEnforcement = "hard_deny"
	EnforcementAdvisory GraphPolicyEnforcement = "advisory"
)

// GraphPolicyRule is an ephemeral rule derived from a grounded UIIntent,
// ComponentIntent, or MacroConstraint graph node with enforcement=hard_deny
// (spec.md §3, §4.6).
type GraphPolicyRule struct {
	SourceNodeID  string         `json:"source_node_id"`
	SourceKind    string         `json:"source_kind"` // ui_intent | component_intent | macro_constraint
	Condition     string         `json:"condition"`   // CEL expression
	RequiredSteps []RequiredStep `json:"required_steps"`
	DenyCode      string         `json:"deny_code"`
}

// AdvisoryPolicy is a policy node that is grounded but not enforcement=hard_deny,
// or ungrounded entirely: surfaced in the pack but never blocks plan
// acceptance.
type AdvisoryPolicy struct {
	SourceNodeID string `json:"source_node_id"`
	Description  string `json:"description"`
}

// MigrationRuleStatus is the lifecycle status of a migration rule.
type MigrationRuleStatus string

const (
	MigrationApproved  MigrationRuleStatus = "approved"
	MigrationCandidate MigrationRuleStatus = "candidate"
	MigrationUnknown   MigrationRuleStatus = "unknown"
	MigrationNoAnalog  MigrationRuleStatus = "no_analog"
)

// MigrationRule records an approved/candidate mapping from one tag to
// another (e.g. ADP -> SDF component migration).
type MigrationRule struct {
	FromTag string              `json:"from_tag"`
	ToTag   string              `json:"to_tag"`
	Status  MigrationRuleStatus `json:"status"`
}

// EnforcementBundle is the pre-computed union of memory plan rules, grounded
// graph-policy rules, and migration rules, consumed by the Plan Graph
// Validator (spec.md §3, §4.6).
type EnforcementBundle struct {
	MemoryPlanRules  []PlanRulePayload `json:"memory_plan_rules"`
	GraphPolicyRules []GraphPolicyRule `json:"graph_policy_rules"`
	MigrationRules   []MigrationRule   `json:"migration_rules"`
	AdvisoryPolicies []AdvisoryPolicy  `json:"advisory_policies"`
	BuiltFromPackHash string           `json:"built_from_pack_hash"`
}
