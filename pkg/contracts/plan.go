package contracts

// PlanGraphDocument is the submitted plan: an envelope plus an ordered list
// of nodes forming a dependency DAG. Structurally grounded on the teacher's
// contracts.PlanSpec/contracts.DAG (pkg/contracts/plan.go), adapted to the
// change/validate/escalate/side_effect node kinds this controller enforces.
type PlanGraphDocument struct {
	WorkID              string            `json:"work_id"`
	AgentID             string            `json:"agent_id"`
	RunSessionID        string            `json:"run_session_id"`
	RepoSnapshotID      string            `json:"repo_snapshot_id"`
	WorktreeRoot        string            `json:"worktree_root"`
	ContextPackRef      string            `json:"context_pack_ref"`
	ContextPackHash     string            `json:"context_pack_hash"`
	ScopeAllowlistRef   string            `json:"scope_allowlist_ref"`
	KnowledgeStrategyID string            `json:"knowledge_strategy_id"`
	StrategyReasons     []StrategyReason  `json:"knowledge_strategy_reasons"`
	PlanFingerprint     string            `json:"plan_fingerprint"`
	SchemaVersion       string            `json:"schema_version"`
	SourceTraceRefs     []string          `json:"source_trace_refs"`
	EvidencePolicy      EvidencePolicy    `json:"evidence_policy"`
	Nodes               []PlanNode        `json:"nodes"`
}

// StrategyReason is a single {reason, evidenceRef} pair backing the chosen
// knowledge strategy.
type StrategyReason struct {
	Reason      string `json:"reason"`
	EvidenceRef string `json:"evidence_ref"`
}

// EvidencePolicy configures the Evidence Policy Engine's thresholds for this
// plan (spec.md §4.5).
type EvidencePolicy struct {
	MinDistinctSources        int  `json:"min_distinct_sources"`
	MinRequirementSources      int  `json:"min_requirement_sources"`
	MinCodeEvidenceSources     int  `json:"min_code_evidence_sources"`
	AllowSingleSourceWithGuard bool `json:"allow_single_source_with_guard"`
}

// DefaultEvidencePolicy returns the spec-mandated default (min 2 distinct
// sources, guard exception allowed).
func DefaultEvidencePolicy() EvidencePolicy {
	return EvidencePolicy{
		MinDistinctSources:         2,
		AllowSingleSourceWithGuard: true,
	}
}

// NodeKind discriminates the PlanNode tagged variant.
type NodeKind string

const (
	NodeKindChange     NodeKind = "change"
	NodeKindValidate   NodeKind = "validate"
	NodeKindEscalate   NodeKind = "escalate"
	NodeKindSideEffect NodeKind = "side_effect"
)

// AtomicityBoundary scopes a node's acceptance criteria and module
// footprint, in- and out-of-scope.
type AtomicityBoundary struct {
	InScopeAcceptanceCriteriaIDs  []string `json:"in_scope_acceptance_criteria_ids"`
	OutOfScopeAcceptanceCriteriaIDs []string `json:"out_of_scope_acceptance_criteria_ids"`
	InScopeModules                []string `json:"in_scope_modules"`
	OutOfScopeModules             []string `json:"out_of_scope_modules"`
}

// PlanNode is the discriminated union of the four node kinds. Exactly one of
// Change/Validate/Escalate/SideEffect is populated, selected by Kind — this
// mirrors the teacher's approach of plain JSON-tagged structs
// (contracts.PlanStep) rather than an interface-per-variant hierarchy, while
// still exposing a single exported type to callers per spec.md §9.
type PlanNode struct {
	NodeID                     string            `json:"node_id"`
	Kind                       NodeKind          `json:"kind"`
	DependsOn                  []string          `json:"depends_on"`
	ExpectedFailureSignatures  []string          `json:"expected_failure_signatures"`
	AtomicityBoundary          AtomicityBoundary `json:"atomicity_boundary"`

	Change     *ChangeNode     `json:"change,omitempty"`
	Validate   *ValidateNode   `json:"validate,omitempty"`
	Escalate   *EscalateNode   `json:"escalate,omitempty"`
	SideEffect *SideEffectNode `json:"side_effect,omitempty"`
}

// ChangeNode is the payload of a "change" node.
type ChangeNode struct {
	Operation           string   `json:"operation"` // e.g. "create", "edit", "delete"
	TargetFile           string   `json:"target_file"`
	TargetSymbols        []string `json:"target_symbols,omitempty"`
	WhyThisFile          string   `json:"why_this_file"`
	EditIntent           string   `json:"edit_intent"`
	EscalateIf           []string `json:"escalate_if"`
	Citations            []string `json:"citations"`
	CodeEvidence         []string `json:"code_evidence"`
	ArtifactRefs         []string `json:"artifact_refs"`
	PolicyRefs           []string `json:"policy_refs"`
	VerificationHooks    []string `json:"verification_hooks"`
	LowEvidenceGuard     bool     `json:"low_evidence_guard,omitempty"`
	UncertaintyNote      string   `json:"uncertainty_note,omitempty"`
	RequiresHumanReview  bool     `json:"requires_human_review,omitempty"`
}

// IsSymbolCreation reports whether this change creates new symbols, which
// exempts it from the TargetSymbols-non-empty invariant.
func (c *ChangeNode) IsSymbolCreation() bool {
	return c.Operation == "create"
}

// ValidateNode is the payload of a "validate" node.
type ValidateNode struct {
	VerificationHooks []string `json:"verification_hooks"`
	MapsToNodeIDs     []string `json:"maps_to_node_ids"`
	SuccessCriteria   []string `json:"success_criteria"`
}

// RequestedEvidenceType is the closed set of escalation evidence request
// kinds.
type RequestedEvidenceType string

const (
	EvidenceArtifactFetch RequestedEvidenceType = "artifact_fetch"
	EvidenceGraphExpand   RequestedEvidenceType = "graph_expand"
	EvidencePackRebuild   RequestedEvidenceType = "pack_rebuild"
	EvidenceScopeExpand   RequestedEvidenceType = "scope_expand"
)

// ValidRequestedEvidenceTypes is the closed set checked by the validator.
var ValidRequestedEvidenceTypes = map[RequestedEvidenceType]bool{
	EvidenceArtifactFetch: true,
	EvidenceGraphExpand:   true,
	EvidencePackRebuild:   true,
	EvidenceScopeExpand:   true,
}

// RequestedEvidence is one entry of an escalate node's evidence request.
type RequestedEvidence struct {
	Type   RequestedEvidenceType `json:"type"`
	Detail string                `json:"detail"`
}

// EscalateNode is the payload of an "escalate" node.
type EscalateNode struct {
	RequestedEvidence []RequestedEvidence `json:"requested_evidence"`
	BlockingReasons   []string            `json:"blocking_reasons"`
}

// SideEffectNode is the payload of a "side_effect" node.
type SideEffectNode struct {
	SideEffectType       string `json:"side_effect_type"`
	SideEffectPayloadRef string `json:"side_effect_payload_ref"`
	CommitGateID         string `json:"commit_gate_id"`
}
