package capabilities

import (
	"testing"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func TestAllowed_Uninitialized_OnlyInitializeWork(t *testing.T) {
	allowed := Allowed(contracts.StateUninitialized)
	if len(allowed) != 1 || !allowed[contracts.VerbInitializeWork] {
		t.Fatalf("expected exactly initialize_work, got %v", allowed)
	}
}

func TestAllowed_Planning_ExcludesMutationVerbs(t *testing.T) {
	allowed := Allowed(contracts.StatePlanning)
	for v := range contracts.MutationVerbs {
		if allowed[v] {
			t.Fatalf("expected %s to be disallowed in PLANNING", v)
		}
	}
	if !allowed[contracts.VerbSubmitExecutionPlan] {
		t.Fatal("expected submit_execution_plan to be allowed in PLANNING")
	}
}

func TestAllowed_PlanAccepted_IncludesMutationVerbs(t *testing.T) {
	allowed := Allowed(contracts.StatePlanAccepted)
	for v := range contracts.MutationVerbs {
		if !allowed[v] {
			t.Fatalf("expected %s to be allowed in PLAN_ACCEPTED", v)
		}
	}
}

func TestPermits_MatchesAllowed(t *testing.T) {
	if !Permits(contracts.StatePlanAccepted, contracts.VerbApplyCodePatch) {
		t.Fatal("expected Permits to agree with Allowed")
	}
	if Permits(contracts.StateUninitialized, contracts.VerbApplyCodePatch) {
		t.Fatal("expected apply_code_patch to be denied in UNINITIALIZED")
	}
}

func TestAllowedList_Deterministic(t *testing.T) {
	a := AllowedList(contracts.StatePlanAccepted)
	b := AllowedList(contracts.StatePlanAccepted)
	if len(a) != len(b) {
		t.Fatal("expected stable list length")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected stable ordering at index %d: %s != %s", i, a[i], b[i])
		}
	}
}
