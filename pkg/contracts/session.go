package contracts

import "time"

// SessionState is the authoritative per-session record. It is exclusively
// owned by the Session Store and mutated only by the Turn Controller while
// holding the session's lease (see pkg/session).
type SessionState struct {
	RunSessionID string   `json:"run_session_id"`
	WorkID       string   `json:"work_id"`
	AgentID      string   `json:"agent_id"`
	State        RunState `json:"state"`

	OriginalPrompt string `json:"original_prompt"`

	RejectionCounts map[string]int64 `json:"rejection_counts"`
	ActionCounts    map[string]int64 `json:"action_counts"`
	UsedTokens      int64            `json:"used_tokens"`

	PlanGraph         *PlanGraphDocument `json:"plan_graph,omitempty"`
	ScopeAllowlist    *ScopeAllowlist    `json:"scope_allowlist,omitempty"`
	Artifacts         []ArtifactRef      `json:"artifacts"`
	ContextPack       *ContextPack       `json:"context_pack,omitempty"`
	PlanGraphProgress *PlanGraphProgress `json:"plan_graph_progress,omitempty"`
	EnforcementBundle *EnforcementBundle `json:"enforcement_bundle,omitempty"`

	WorktreeRoot string `json:"worktree_root"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScopeAllowlist is the session's file/symbol allowlist.
type ScopeAllowlist struct {
	Ref     string   `json:"ref"`
	Files   []string `json:"files"`
	Symbols []string `json:"symbols"`
}

// ArtifactRef records an artifact attached to the session (Jira/Swagger
// fetch results, inbox attachments, operation artifact bundles).
type ArtifactRef struct {
	Ref       string    `json:"ref"`
	Kind      string    `json:"kind"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanGraphProgress tracks node completion against the accepted plan.
type PlanGraphProgress struct {
	TotalNodes              int             `json:"total_nodes"`
	CompletedNodeIDs        map[string]bool `json:"completed_node_ids"`
	EligibleValidateNodeIDs map[string]bool `json:"eligible_validate_node_ids"`
}

// RemainingNodeIDs returns the node ids in the accepted plan that are not
// yet in CompletedNodeIDs, in the order they appear in allNodeIDs.
func (p *PlanGraphProgress) RemainingNodeIDs(allNodeIDs []string) []string {
	var remaining []string
	for _, id := range allNodeIDs {
		if !p.CompletedNodeIDs[id] {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// Complete reports whether every node has been completed.
func (p *PlanGraphProgress) Complete() bool {
	return len(p.CompletedNodeIDs) >= p.TotalNodes
}
