package enforcement

import (
	"strings"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// GraphPolicyNode is the minimal shape the Enforcement Bundle Builder reads
// off a graph-policy node resolved via the graph client (pkg/graphclient).
type GraphPolicyNode struct {
	ID           string
	Kind         string // ui_intent | component_intent | macro_constraint
	Grounded     bool   // linked to a UsageExample
	Enforcement  contracts.GraphPolicyEnforcement
	ForbiddenComponents []string
	ComponentTag string
	Condition    string
	DenyCode     string
	Description  string
}

// Builder assembles an EnforcementBundle from active memories, resolved
// graph-policy nodes, and migration rules (spec.md §4.6).
type Builder struct{}

// NewBuilder constructs a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build converts inputs into the derived bundle. packHash is stamped onto
// the bundle so staleness can be detected when the pack later changes.
func (b *Builder) Build(packHash string, activeMemories []*contracts.MemoryRecord, graphPolicies []GraphPolicyNode, migrationRules []contracts.MigrationRule) *contracts.EnforcementBundle {
	bundle := &contracts.EnforcementBundle{
		BuiltFromPackHash: packHash,
		MigrationRules:    migrationRules,
	}

	for _, m := range activeMemories {
		if m.EnforcementType == contracts.EnforcementPlanRule && m.PlanRule != nil {
			bundle.MemoryPlanRules = append(bundle.MemoryPlanRules, *m.PlanRule)
		}
	}

	for _, node := range graphPolicies {
		if !node.Grounded {
			bundle.AdvisoryPolicies = append(bundle.AdvisoryPolicies, contracts.AdvisoryPolicy{
				SourceNodeID: node.ID,
				Description:  node.Description,
			})
			continue
		}
		if node.Enforcement != contracts.EnforcementHardDeny {
			bundle.AdvisoryPolicies = append(bundle.AdvisoryPolicies, contracts.AdvisoryPolicy{
				SourceNodeID: node.ID,
				Description:  node.Description,
			})
			continue
		}

		rule := contracts.GraphPolicyRule{
			SourceNodeID: node.ID,
			SourceKind:   node.Kind,
			Condition:    node.Condition,
			DenyCode:     node.DenyCode,
		}

		switch node.Kind {
		case "ui_intent":
			for _, forbidden := range node.ForbiddenComponents {
				rule.RequiredSteps = append(rule.RequiredSteps, contracts.RequiredStep{
					Kind:          contracts.NodeKindChange,
					TargetPattern: forbidden,
				})
			}
		case "component_intent":
			rule.RequiredSteps = append(rule.RequiredSteps, contracts.RequiredStep{
				Kind:          contracts.NodeKindValidate,
				TargetPattern: node.ComponentTag,
			})
		case "macro_constraint":
			rule.RequiredSteps = append(rule.RequiredSteps, contracts.RequiredStep{
				Kind: contracts.NodeKindValidate,
			})
		}

		bundle.GraphPolicyRules = append(bundle.GraphPolicyRules, rule)
	}

	return bundle
}

// StepSatisfied reports whether any node in nodes matches required: same
// kind, and (if set) TargetPattern is a substring of the node's
// targetFile, targetSymbols, or verificationHooks.
func StepSatisfied(required contracts.RequiredStep, nodes []contracts.PlanNode) bool {
	for _, n := range nodes {
		if n.Kind != required.Kind {
			continue
		}
		if required.TargetPattern == "" {
			return true
		}
		if nodeMatchesPattern(n, required.TargetPattern) {
			return true
		}
	}
	return false
}

func nodeMatchesPattern(n contracts.PlanNode, pattern string) bool {
	switch n.Kind {
	case contracts.NodeKindChange:
		if n.Change == nil {
			return false
		}
		if strings.Contains(n.Change.TargetFile, pattern) {
			return true
		}
		for _, sym := range n.Change.TargetSymbols {
			if strings.Contains(sym, pattern) {
				return true
			}
		}
		for _, hook := range n.Change.VerificationHooks {
			if strings.Contains(hook, pattern) {
				return true
			}
		}
	case contracts.NodeKindValidate:
		if n.Validate == nil {
			return false
		}
		for _, hook := range n.Validate.VerificationHooks {
			if strings.Contains(hook, pattern) {
				return true
			}
		}
	}
	return false
}
