package verbs

import (
	"testing"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func TestValidateArgs_RejectsMissingRequiredField(t *testing.T) {
	dr := ValidateArgs(contracts.VerbReadFileLines, map[string]interface{}{})
	if dr == nil {
		t.Fatal("expected a deny reason for missing required 'file' argument")
	}
	if dr.Code != contracts.RejectPlanMissingRequiredFields {
		t.Fatalf("expected PLAN_MISSING_REQUIRED_FIELDS, got %v", dr.Code)
	}
}

func TestValidateArgs_AcceptsWellFormedArgs(t *testing.T) {
	dr := ValidateArgs(contracts.VerbReadFileLines, map[string]interface{}{"file": "a.go"})
	if dr != nil {
		t.Fatalf("expected no deny reason, got %+v", dr)
	}
}

func TestValidateArgs_UnregisteredVerbIsArgumentFree(t *testing.T) {
	if dr := ValidateArgs(contracts.Verb("unknown_verb"), map[string]interface{}{"anything": true}); dr != nil {
		t.Fatalf("expected no schema registered means no validation, got %+v", dr)
	}
}

func TestDescriptions_CoversEveryRegisteredVerb(t *testing.T) {
	descs := Descriptions()
	for verb := range NewRegistry() {
		if _, ok := descs[verb]; !ok {
			t.Errorf("verb %q has a handler but no description", verb)
		}
	}
}
