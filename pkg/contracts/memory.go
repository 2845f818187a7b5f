package contracts

import "time"

// MemoryTrigger identifies what caused a memory record to be created.
type MemoryTrigger string

const (
	TriggerRejectionPattern MemoryTrigger = "rejection_pattern"
	TriggerHumanOverride    MemoryTrigger = "human_override"
	TriggerRetrospective    MemoryTrigger = "retrospective"
)

// MemoryPhase identifies when a memory is consulted.
type MemoryPhase string

const (
	PhasePlanning      MemoryPhase = "planning"
	PhaseExecution     MemoryPhase = "execution"
	PhaseRetrospective MemoryPhase = "retrospective"
)

// EnforcementType discriminates how a memory enforces itself.
type EnforcementType string

const (
	EnforcementFewShot        EnforcementType = "few_shot"
	EnforcementPlanRule       EnforcementType = "plan_rule"
	EnforcementStrategySignal EnforcementType = "strategy_signal"
	EnforcementInformational  EnforcementType = "informational"
)

// MemoryState is the lifecycle state of a memory record.
type MemoryState string

const (
	MemoryPending     MemoryState = "pending"
	MemoryProvisional MemoryState = "provisional"
	MemoryApproved    MemoryState = "approved"
	MemoryRejected    MemoryState = "rejected"
	MemoryExpired     MemoryState = "expired"
)

// RequiredStep is one required step of a plan_rule memory or a graph policy
// rule: a node kind plus an optional substring pattern matched against
// target file/symbols/verification hooks.
type RequiredStep struct {
	Kind          NodeKind `json:"kind"`
	TargetPattern string   `json:"target_pattern,omitempty"`
}

// PlanRulePayload is the payload of a plan_rule-enforcement memory.
type PlanRulePayload struct {
	Condition     string         `json:"condition"` // CEL expression
	RequiredSteps []RequiredStep `json:"required_steps"`
	DenyCode      string         `json:"deny_code"`
}

// FewShotPayload is the payload of a few_shot-enforcement memory.
type FewShotPayload struct {
	Before    string `json:"before"`
	After     string `json:"after"`
	WhyWrong  string `json:"why_wrong"`
}

// StrategySignalPayload is the payload of a strategy_signal-enforcement
// memory: it overrides one boolean/enum feature of the context signature.
type StrategySignalPayload struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
}

// MemoryRecord is a learned or human-supplied rule (spec.md §3).
type MemoryRecord struct {
	ID               string          `json:"id"`
	Trigger          MemoryTrigger   `json:"trigger"`
	Phase            MemoryPhase     `json:"phase"`
	DomainAnchorIDs  []string        `json:"domain_anchor_ids"`
	RejectionCodes   []string        `json:"rejection_codes,omitempty"`
	OriginStrategyID string          `json:"origin_strategy_id,omitempty"`
	EnforcementType  EnforcementType `json:"enforcement_type"`

	FewShot        *FewShotPayload        `json:"few_shot,omitempty"`
	PlanRule       *PlanRulePayload       `json:"plan_rule,omitempty"`
	StrategySignal *StrategySignalPayload `json:"strategy_signal,omitempty"`

	State     MemoryState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Provenance
	CreatedBy      string `json:"created_by,omitempty"`
	SourceFriction string `json:"source_friction,omitempty"`
}

// Active reports whether the memory is currently enforced.
func (m *MemoryRecord) Active() bool {
	return m.State == MemoryApproved || m.State == MemoryProvisional
}

// AnchorsIntersect reports whether m.DomainAnchorIDs has any element in
// common with anchorIDs.
func (m *MemoryRecord) AnchorsIntersect(anchorIDs []string) bool {
	set := make(map[string]bool, len(anchorIDs))
	for _, a := range anchorIDs {
		set[a] = true
	}
	for _, a := range m.DomainAnchorIDs {
		if set[a] {
			return true
		}
	}
	return false
}

// DomainAnchor is a folder-scoped identity used to bind memories and
// policies to regions of the repository.
type DomainAnchor struct {
	ID             string `json:"id"` // "anchor:<folder-path>"
	Name           string `json:"name"`
	FolderPath     string `json:"folder_path"`
	Depth          int    `json:"depth"`
	ParentAnchorID string `json:"parent_anchor_id,omitempty"`
	AutoSeeded     bool   `json:"auto_seeded"`
}

// FrictionEvent is one entry of the append-only friction ledger: a
// rejection the planner hit, recorded so a memory can later be traced back
// to the friction that produced it (SPEC_FULL.md supplement).
type FrictionEvent struct {
	ID             string    `json:"id"`
	RunSessionID   string    `json:"run_session_id"`
	RejectionCode  string    `json:"rejection_code"`
	AnchorIDs      []string  `json:"anchor_ids"`
	Detail         string    `json:"detail"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ChangelogEntry is one entry of the append-only memory changelog.
type ChangelogEntry struct {
	MemoryID  string      `json:"memory_id"`
	FromState MemoryState `json:"from_state"`
	ToState   MemoryState `json:"to_state"`
	Reason    string      `json:"reason"`
	At        time.Time   `json:"at"`
}
