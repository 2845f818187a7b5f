package enforcement

import (
	"testing"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func TestCELEvaluator_SimpleCondition(t *testing.T) {
	ev, err := NewCELEvaluator()
	if err != nil {
		t.Fatal(err)
	}
	matched, err := ev.Eval(`node.kind == "change"`, map[string]interface{}{
		"node": map[string]interface{}{"kind": "change"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Fatal("expected condition to match")
	}
}

func TestCELEvaluator_FailsClosedOnBadExpression(t *testing.T) {
	ev, err := NewCELEvaluator()
	if err != nil {
		t.Fatal(err)
	}
	matched, err := ev.Eval(`node.nonexistent_field +++`, map[string]interface{}{"node": map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !matched {
		t.Fatal("expected fail-closed (matched=true) on a broken expression")
	}
}

func TestBuilder_Build_GroundedHardDenyBecomesGraphPolicyRule(t *testing.T) {
	b := NewBuilder()
	bundle := b.Build("packhash123", nil, []GraphPolicyNode{
		{
			ID:                  "node1",
			Kind:                "ui_intent",
			Grounded:            true,
			Enforcement:         contracts.EnforcementHardDeny,
			ForbiddenComponents: []string{"LegacyGridCell"},
			DenyCode:            "PLAN_POLICY_VIOLATION",
		},
	}, nil)

	if len(bundle.GraphPolicyRules) != 1 {
		t.Fatalf("expected 1 graph policy rule, got %d", len(bundle.GraphPolicyRules))
	}
	if len(bundle.GraphPolicyRules[0].RequiredSteps) != 1 {
		t.Fatalf("expected 1 required step, got %v", bundle.GraphPolicyRules[0].RequiredSteps)
	}
}

func TestBuilder_Build_UngroundedBecomesAdvisory(t *testing.T) {
	b := NewBuilder()
	bundle := b.Build("packhash123", nil, []GraphPolicyNode{
		{ID: "node2", Kind: "macro_constraint", Grounded: false, Description: "not linked to a usage example"},
	}, nil)

	if len(bundle.GraphPolicyRules) != 0 {
		t.Fatal("expected ungrounded policy to not become a hard rule")
	}
	if len(bundle.AdvisoryPolicies) != 1 {
		t.Fatal("expected ungrounded policy to become advisory")
	}
}

func TestStepSatisfied_MatchesByTargetPattern(t *testing.T) {
	nodes := []contracts.PlanNode{
		{
			Kind: contracts.NodeKindChange,
			Change: &contracts.ChangeNode{
				TargetFile: "src/components/LegacyGridCell.tsx",
			},
		},
	}
	required := contracts.RequiredStep{Kind: contracts.NodeKindChange, TargetPattern: "LegacyGridCell"}
	if !StepSatisfied(required, nodes) {
		t.Fatal("expected required step to be satisfied")
	}
}

func TestStepSatisfied_UnmetWhenNoMatch(t *testing.T) {
	nodes := []contracts.PlanNode{
		{Kind: contracts.NodeKindValidate, Validate: &contracts.ValidateNode{}},
	}
	required := contracts.RequiredStep{Kind: contracts.NodeKindChange, TargetPattern: "Foo"}
	if StepSatisfied(required, nodes) {
		t.Fatal("expected required step to be unmet")
	}
}

func TestCodemodCatalog_DefaultHasKnownEntries(t *testing.T) {
	cat := DefaultCodemodCatalog()
	if !cat.Has("codemod:adp-to-sdf-props") {
		t.Fatal("expected default catalog to know adp-to-sdf-props")
	}
	if cat.Has("codemod:does-not-exist") {
		t.Fatal("expected unknown codemod id to be absent")
	}
}
