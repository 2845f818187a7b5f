package contracts

// Verb is one of the stable public verb identifiers (spec.md §6).
type Verb string

const (
	VerbInitializeWork         Verb = "initialize_work"
	VerbListAvailableVerbs     Verb = "list_available_verbs"
	VerbGetOriginalPrompt      Verb = "get_original_prompt"
	VerbListScopedFiles        Verb = "list_scoped_files"
	VerbListDirectoryContents  Verb = "list_directory_contents"
	VerbReadFileLines          Verb = "read_file_lines"
	VerbLookupSymbolDefinition Verb = "lookup_symbol_definition"
	VerbSearchCodebaseText     Verb = "search_codebase_text"
	VerbTraceSymbolGraph       Verb = "trace_symbol_graph"
	VerbWriteScratchFile       Verb = "write_scratch_file"
	VerbFetchJiraTicket        Verb = "fetch_jira_ticket"
	VerbFetchAPISpec           Verb = "fetch_api_spec"
	VerbSubmitExecutionPlan    Verb = "submit_execution_plan"
	VerbRequestEvidenceGuidance Verb = "request_evidence_guidance"
	VerbApplyCodePatch         Verb = "apply_code_patch"
	VerbRunSandboxedCode       Verb = "run_sandboxed_code"
	VerbExecuteGatedSideEffect Verb = "execute_gated_side_effect"
	VerbRunAutomationRecipe    Verb = "run_automation_recipe"
	VerbSignalTaskComplete     Verb = "signal_task_complete"
)

// MutationVerbs is the set of verbs permitted only in StatePlanAccepted.
var MutationVerbs = map[Verb]bool{
	VerbApplyCodePatch:         true,
	VerbRunSandboxedCode:       true,
	VerbExecuteGatedSideEffect: true,
	VerbRunAutomationRecipe:    true,
}

// RejectionCode is a stable short identifier returned on every refusal.
type RejectionCode string

const (
	RejectPlanMissingRequiredFields RejectionCode = "PLAN_MISSING_REQUIRED_FIELDS"
	RejectPlanNotAtomic             RejectionCode = "PLAN_NOT_ATOMIC"
	RejectPlanScopeViolation        RejectionCode = "PLAN_SCOPE_VIOLATION"
	RejectPlanStrategyMismatch      RejectionCode = "PLAN_STRATEGY_MISMATCH"
	RejectPlanEvidenceInsufficient  RejectionCode = "PLAN_EVIDENCE_INSUFFICIENT"
	RejectPlanVerificationWeak      RejectionCode = "PLAN_VERIFICATION_WEAK"
	RejectPlanPolicyViolation       RejectionCode = "PLAN_POLICY_VIOLATION"
	RejectExecUngatedSideEffect     RejectionCode = "EXEC_UNGATED_SIDE_EFFECT"
	RejectPlanMissingArtifactRef    RejectionCode = "PLAN_MISSING_ARTIFACT_REF"
	RejectPlanMigrationRuleMissing  RejectionCode = "PLAN_MIGRATION_RULE_MISSING"
	RejectPackScopeViolation        RejectionCode = "PACK_SCOPE_VIOLATION"
	RejectPackInsufficient          RejectionCode = "PACK_INSUFFICIENT"
	RejectWorkIncomplete            RejectionCode = "WORK_INCOMPLETE"
	RejectVerbNotPermitted          RejectionCode = "VERB_NOT_PERMITTED_IN_STATE"
	RejectBudgetExceeded            RejectionCode = "BUDGET_EXCEEDED"
)

// DenyReason pairs a rejection code with a human-readable message and, where
// applicable, a remediation hint (spec.md §4.2, §4.7).
type DenyReason struct {
	Code    RejectionCode `json:"code"`
	Message string        `json:"message"`
}

// SuggestedAction is the remediation hint attached to a denied response.
type SuggestedAction struct {
	Verb   Verb   `json:"verb"`
	Reason string `json:"reason"`
}

// BudgetStatus is the numeric token-accounting snapshot carried on every
// response envelope.
type BudgetStatus struct {
	MaxTokens      int64 `json:"max_tokens"`
	UsedTokens     int64 `json:"used_tokens"`
	ThresholdTokens int64 `json:"threshold_tokens"`
	Blocked        bool  `json:"blocked"`
}

// VerbDescription is the per-verb self-documentation surfaced by
// list_available_verbs and on every envelope.
type VerbDescription struct {
	Description  string   `json:"description"`
	WhenToUse    string   `json:"when_to_use"`
	RequiredArgs []string `json:"required_args"`
	OptionalArgs []string `json:"optional_args"`
}

// ScopeInfo is the envelope's scope sub-object.
type ScopeInfo struct {
	WorktreeRoot string `json:"worktree_root"`
}

// Envelope is the transport-agnostic request wrapper the dispatcher's
// handle() accepts: runSessionId/workId/agentId plus trace metadata
// (spec.md §4.13).
type Envelope struct {
	RunSessionID string `json:"run_session_id"`
	WorkID       string `json:"work_id"`
	AgentID      string `json:"agent_id"`
	TraceParent  string `json:"trace_parent,omitempty"`
}

// Response is the uniform envelope every handle() call returns
// (spec.md §4.2).
type Response struct {
	RunSessionID      string                     `json:"run_session_id"`
	WorkID            string                     `json:"work_id"`
	AgentID           string                     `json:"agent_id"`
	State             RunState                   `json:"state"`
	Capabilities      []Verb                     `json:"capabilities"`
	DenyReasons       []DenyReason               `json:"deny_reasons"`
	TraceRef          string                     `json:"trace_ref"`
	TraceReceipt      string                     `json:"trace_receipt,omitempty"`
	SchemaVersion     string                     `json:"schema_version"`
	BudgetStatus      BudgetStatus               `json:"budget_status"`
	Scope             ScopeInfo                  `json:"scope"`
	KnowledgeStrategy string                     `json:"knowledge_strategy,omitempty"`
	SubAgentHints     []string                   `json:"sub_agent_hints,omitempty"`
	VerbDescriptions  map[Verb]VerbDescription   `json:"verb_descriptions"`
	Result            interface{}                `json:"result,omitempty"`
	SuggestedAction   *SuggestedAction            `json:"suggested_action,omitempty"`
}

// VerbResult is what a verb handler returns to the dispatcher: a result
// payload, zero or more deny reasons, and an optional forced state
// transition. Handlers never raise across the dispatcher boundary
// (spec.md §4.7 propagation policy).
type VerbResult struct {
	Result        interface{}
	DenyReasons   []DenyReason
	StateOverride *RunState
}

// Denied reports whether the handler produced at least one deny reason.
func (r VerbResult) Denied() bool {
	return len(r.DenyReasons) > 0
}
