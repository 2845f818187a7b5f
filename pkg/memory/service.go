package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// Service implements the Memory Service operations of spec.md §4.10.
type Service struct {
	store   Store
	now     func() time.Time
	profile AutoPromotionPolicy
}

// AutoPromotionPolicy is the subset of config.PolicyProfile the Memory
// Service needs, kept narrow so this package does not import pkg/config.
type AutoPromotionPolicy struct {
	ContestWindow       time.Duration
	ExpiryWindow        time.Duration
	AutoPromotableTypes []contracts.EnforcementType
	OverrideInitialState contracts.MemoryState
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the Service's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a Service backed by store, using policy for auto-promotion
// windows and the human-override initial state.
func New(store Store, policy AutoPromotionPolicy, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, profile: policy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFromFrictionInput is the input to createFromFriction.
type CreateFromFrictionInput struct {
	Trigger         contracts.MemoryTrigger
	Phase           contracts.MemoryPhase
	DomainAnchorIDs []string
	RejectionCodes  []string
	EnforcementType contracts.EnforcementType
	FewShot         *contracts.FewShotPayload
	PlanRule        *contracts.PlanRulePayload
	StrategySignal  *contracts.StrategySignalPayload
	SourceFriction  string
	RunSessionID    string
	Detail          string
}

// CreateFromFriction logs a FrictionEvent and creates a pending MemoryRecord
// derived from it.
func (s *Service) CreateFromFriction(in CreateFromFrictionInput) (*contracts.MemoryRecord, error) {
	now := s.now()

	if in.SourceFriction == "" {
		fe := contracts.FrictionEvent{
			ID:            uuid.New().String(),
			RunSessionID:  in.RunSessionID,
			RejectionCode: firstOrEmpty(in.RejectionCodes),
			AnchorIDs:     in.DomainAnchorIDs,
			Detail:        in.Detail,
			OccurredAt:    now,
		}
		if err := s.store.AppendFriction(fe); err != nil {
			return nil, fmt.Errorf("memory: append friction: %w", err)
		}
		in.SourceFriction = fe.ID
	}

	rec := &contracts.MemoryRecord{
		ID:              uuid.New().String(),
		Trigger:         in.Trigger,
		Phase:           in.Phase,
		DomainAnchorIDs: in.DomainAnchorIDs,
		RejectionCodes:  in.RejectionCodes,
		EnforcementType: in.EnforcementType,
		FewShot:         in.FewShot,
		PlanRule:        in.PlanRule,
		StrategySignal:  in.StrategySignal,
		State:           contracts.MemoryPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		SourceFriction:  in.SourceFriction,
	}
	if err := s.store.Put(rec); err != nil {
		return nil, fmt.Errorf("memory: put record: %w", err)
	}
	if err := s.store.AppendChangelog(contracts.ChangelogEntry{
		MemoryID: rec.ID, FromState: "", ToState: rec.State, Reason: "created_from_friction", At: now,
	}); err != nil {
		return nil, fmt.Errorf("memory: append changelog: %w", err)
	}
	return rec, nil
}

// CreateFromHumanOverrideInput is the input to createFromHumanOverride.
type CreateFromHumanOverrideInput struct {
	DomainAnchorIDs []string
	EnforcementType contracts.EnforcementType
	FewShot         *contracts.FewShotPayload
	PlanRule        *contracts.PlanRulePayload
	StrategySignal  *contracts.StrategySignalPayload
	CreatedBy       string
}

// CreateFromHumanOverride creates a record whose initial state is the
// configured human-override state, typically approved.
func (s *Service) CreateFromHumanOverride(in CreateFromHumanOverrideInput) (*contracts.MemoryRecord, error) {
	now := s.now()
	initial := s.profile.OverrideInitialState
	if initial == "" {
		initial = contracts.MemoryApproved
	}

	rec := &contracts.MemoryRecord{
		ID:              uuid.New().String(),
		Trigger:         contracts.TriggerHumanOverride,
		Phase:           contracts.PhasePlanning,
		DomainAnchorIDs: in.DomainAnchorIDs,
		EnforcementType: in.EnforcementType,
		FewShot:         in.FewShot,
		PlanRule:        in.PlanRule,
		StrategySignal:  in.StrategySignal,
		State:           initial,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       in.CreatedBy,
	}
	if err := s.store.Put(rec); err != nil {
		return nil, fmt.Errorf("memory: put record: %w", err)
	}
	if err := s.store.AppendChangelog(contracts.ChangelogEntry{
		MemoryID: rec.ID, FromState: "", ToState: rec.State, Reason: "created_from_human_override", At: now,
	}); err != nil {
		return nil, fmt.Errorf("memory: append changelog: %w", err)
	}
	return rec, nil
}

// FindActiveForAnchors returns records whose state is active (approved or
// provisional) and whose domainAnchorIds intersect anchorIDs.
func (s *Service) FindActiveForAnchors(anchorIDs []string) ([]*contracts.MemoryRecord, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}
	out := make([]*contracts.MemoryRecord, 0)
	for _, rec := range all {
		if rec.Active() && rec.AnchorsIntersect(anchorIDs) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Transition moves a memory record to nextState, recording reason in the
// changelog. Unknown id is an error.
func (s *Service) Transition(id string, nextState contracts.MemoryState, reason string) (*contracts.MemoryRecord, error) {
	rec, ok, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("memory: no such record %q", id)
	}

	from := rec.State
	now := s.now()
	rec.State = nextState
	rec.UpdatedAt = now
	if err := s.store.Put(rec); err != nil {
		return nil, err
	}
	if err := s.store.AppendChangelog(contracts.ChangelogEntry{
		MemoryID: id, FromState: from, ToState: nextState, Reason: reason, At: now,
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// RunAutoPromotion advances pending records to provisional once they age
// past the contest window (only for auto-promotable enforcement types), and
// advances provisional records to expired once they age past the expiry
// window, as of now.
func (s *Service) RunAutoPromotion(now time.Time) ([]*contracts.MemoryRecord, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}
	autoPromotable := make(map[contracts.EnforcementType]bool, len(s.profile.AutoPromotableTypes))
	for _, t := range s.profile.AutoPromotableTypes {
		autoPromotable[t] = true
	}

	var changed []*contracts.MemoryRecord
	for _, rec := range all {
		switch rec.State {
		case contracts.MemoryPending:
			if autoPromotable[rec.EnforcementType] && now.Sub(rec.CreatedAt) >= s.profile.ContestWindow {
				updated, err := s.Transition(rec.ID, contracts.MemoryProvisional, "auto_promotion_contest_window_elapsed")
				if err != nil {
					return nil, err
				}
				changed = append(changed, updated)
			}
		case contracts.MemoryProvisional:
			if now.Sub(rec.UpdatedAt) >= s.profile.ExpiryWindow {
				updated, err := s.Transition(rec.ID, contracts.MemoryExpired, "auto_promotion_expiry_window_elapsed")
				if err != nil {
					return nil, err
				}
				changed = append(changed, updated)
			}
		}
	}
	return changed, nil
}

// overrideFile is the on-disk shape ingestOverrideFiles expects, a subset of
// CreateFromHumanOverrideInput serializable as JSON.
type overrideFile struct {
	DomainAnchorIDs []string                        `json:"domain_anchor_ids"`
	EnforcementType contracts.EnforcementType       `json:"enforcement_type"`
	FewShot         *contracts.FewShotPayload       `json:"few_shot,omitempty"`
	PlanRule        *contracts.PlanRulePayload      `json:"plan_rule,omitempty"`
	StrategySignal  *contracts.StrategySignalPayload `json:"strategy_signal,omitempty"`
	CreatedBy       string                          `json:"created_by,omitempty"`
}

// IngestOverrideFiles scans dir for *.json files, creates a human-override
// record from each, and renames the file with a .processed suffix so it is
// not re-ingested on the next scan.
func (s *Service) IngestOverrideFiles(dir string) ([]*contracts.MemoryRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memory: read override dir: %w", err)
	}

	var created []*contracts.MemoryRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("memory: read override file %s: %w", entry.Name(), err)
		}
		var ov overrideFile
		if err := json.Unmarshal(data, &ov); err != nil {
			return nil, fmt.Errorf("memory: parse override file %s: %w", entry.Name(), err)
		}
		rec, err := s.CreateFromHumanOverride(CreateFromHumanOverrideInput{
			DomainAnchorIDs: ov.DomainAnchorIDs,
			EnforcementType: ov.EnforcementType,
			FewShot:         ov.FewShot,
			PlanRule:        ov.PlanRule,
			StrategySignal:  ov.StrategySignal,
			CreatedBy:       ov.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
		if err := os.Rename(path, path+".processed"); err != nil {
			return nil, fmt.Errorf("memory: mark override file processed %s: %w", entry.Name(), err)
		}
		created = append(created, rec)
	}
	return created, nil
}

// ScaffoldFewShot generates a pending few_shot record from rejected content,
// leaving after/whyWrong for a human to fill in.
func (s *Service) ScaffoldFewShot(anchorIDs []string, rejectedContent string, rejectionCodes []string) (*contracts.MemoryRecord, error) {
	return s.CreateFromFriction(CreateFromFrictionInput{
		Trigger:         contracts.TriggerRejectionPattern,
		Phase:           contracts.PhasePlanning,
		DomainAnchorIDs: anchorIDs,
		RejectionCodes:  rejectionCodes,
		EnforcementType: contracts.EnforcementFewShot,
		FewShot: &contracts.FewShotPayload{
			Before:   rejectedContent,
			After:    "TODO",
			WhyWrong: "TODO",
		},
	})
}

// GraphSeedNode is one node of the exportAsGraphSeed output.
type GraphSeedNode struct {
	ID              string                    `json:"id"`
	EnforcementType contracts.EnforcementType `json:"enforcement_type"`
	State           contracts.MemoryState     `json:"state"`
}

// GraphSeedEdge is one APPLIES_TO edge of the exportAsGraphSeed output.
type GraphSeedEdge struct {
	FromMemoryID string `json:"from_memory_id"`
	ToAnchorID   string `json:"to_anchor_id"`
	Kind         string `json:"kind"`
}

// GraphSeed is the document written by exportAsGraphSeed.
type GraphSeed struct {
	Nodes []GraphSeedNode `json:"nodes"`
	Edges []GraphSeedEdge `json:"edges"`
}

// ExportAsGraphSeed writes every active memory as a node plus one APPLIES_TO
// edge per domain anchor, suitable for a graph upsert.
func (s *Service) ExportAsGraphSeed(outPath string) (*GraphSeed, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}

	seed := &GraphSeed{}
	for _, rec := range all {
		if !rec.Active() {
			continue
		}
		seed.Nodes = append(seed.Nodes, GraphSeedNode{
			ID: rec.ID, EnforcementType: rec.EnforcementType, State: rec.State,
		})
		for _, anchor := range rec.DomainAnchorIDs {
			seed.Edges = append(seed.Edges, GraphSeedEdge{
				FromMemoryID: rec.ID, ToAnchorID: anchor, Kind: "APPLIES_TO",
			})
		}
	}

	sort.Slice(seed.Nodes, func(i, j int) bool { return seed.Nodes[i].ID < seed.Nodes[j].ID })
	sort.Slice(seed.Edges, func(i, j int) bool {
		if seed.Edges[i].FromMemoryID != seed.Edges[j].FromMemoryID {
			return seed.Edges[i].FromMemoryID < seed.Edges[j].FromMemoryID
		}
		return seed.Edges[i].ToAnchorID < seed.Edges[j].ToAnchorID
	})

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("memory: write graph seed: %w", err)
	}
	return seed, nil
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
