// Package strategy implements the Strategy Selector: a pure function from
// planning-time signals to a knowledge strategy id, plus a context
// signature that strategy_signal memories can override.
package strategy

import (
	"sort"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// TestConfidence is the coarse confidence level the caller has in existing
// test coverage for the area being touched.
type TestConfidence string

const (
	ConfidenceHigh   TestConfidence = "high"
	ConfidenceMedium TestConfidence = "medium"
	ConfidenceLow    TestConfidence = "low"
	ConfidenceNone   TestConfidence = "none"
)

// TaskTypeGuess is a coarse classification of what the turn is trying to do.
type TaskTypeGuess string

const (
	TaskUIFeature   TaskTypeGuess = "ui_feature"
	TaskAPIContract TaskTypeGuess = "api_contract"
	TaskMigration   TaskTypeGuess = "migration"
	TaskDebug       TaskTypeGuess = "debug"
	TaskUnknown     TaskTypeGuess = "unknown"
)

// ContextSignature is the boolean/enum feature vector spec.md §4.11 derives
// a strategy id from.
type ContextSignature struct {
	HasSwagger             bool           `json:"has_swagger"`
	MentionsAgGrid         bool           `json:"mentions_aggrid"`
	BehindFederationBoundary bool         `json:"behind_federation_boundary"`
	TouchesShadowDOM       bool           `json:"touches_shadow_dom"`
	MigrationADPPresent    bool           `json:"migration_adp_present"`
	SDFContractAvailable   bool           `json:"sdf_contract_available"`
	TestConfidenceLevel    TestConfidence `json:"test_confidence_level"`
	TaskTypeGuess          TaskTypeGuess  `json:"task_type_guess"`
	HasRouteGuards         bool           `json:"has_route_guards"`
	HasTemplateDirectives  bool           `json:"has_template_directives"`
}

// Input is every planning-time signal the selector considers.
type Input struct {
	Prompt      string
	Lexemes     []string
	Artifacts   []string
	JiraFields  map[string]string
	SymbolHits  []string
	Anchors     []string
	Guards      []string
	Directives  []string
}

// Result is the selector's output: a strategy id, the reasons it was
// chosen, and the signature it was derived from.
type Result struct {
	StrategyID       string           `json:"strategy_id"`
	Reasons          []string         `json:"reasons"`
	ContextSignature ContextSignature `json:"context_signature"`
}

// Strategy ids, in cascade priority order (first match wins).
const (
	StrategyMigration  = "migration_adp_to_sdf"
	StrategyDebug      = "debug"
	StrategyAPIContract = "api_contract"
	StrategyUIFeature  = "ui_feature"
	StrategyDefault    = "default"
)

// DeriveSignature computes the context signature from raw planning-time
// input. It has no side effects and is safe to call repeatedly.
func DeriveSignature(in Input) ContextSignature {
	sig := ContextSignature{
		HasSwagger:               containsAny(in.Artifacts, "swagger", "openapi") || in.JiraFields["swaggerRef"] != "",
		MentionsAgGrid:           containsAny(in.Lexemes, "ag-grid", "aggrid", "ag_grid") || containsAny(in.SymbolHits, "agGridTable"),
		BehindFederationBoundary: containsAny(in.Lexemes, "federation", "remoteEntry", "module federation"),
		TouchesShadowDOM:         containsAny(in.Lexemes, "shadow dom", "shadowroot", "shadow-dom"),
		MigrationADPPresent:      containsAny(in.Artifacts, "adp") || containsAny(in.Lexemes, "adp"),
		SDFContractAvailable:     containsAny(in.Artifacts, "sdf") || containsAny(in.Lexemes, "sdf"),
		TestConfidenceLevel:      inferTestConfidence(in),
		TaskTypeGuess:            inferTaskType(in),
		HasRouteGuards:           containsAny(in.SymbolHits, "guard") || containsAny(in.Lexemes, "route guard", "canactivate"),
		HasTemplateDirectives:    containsAny(in.Lexemes, "directive", "ngif", "ngfor"),
	}
	return sig
}

// Select derives a context signature from in and the strategy id that
// follows from it.
func Select(in Input) Result {
	sig := DeriveSignature(in)
	return deriveFromSignature(sig)
}

// ReDeriveWithSignals applies strategy_signal memory overrides (each
// overriding one boolean/enum feature of the signature) before re-deriving
// the strategy id. This is the only path by which a memory changes the
// chosen strategy — escalation (request_evidence_guidance) never does.
func ReDeriveWithSignals(base ContextSignature, signals []*contracts.MemoryRecord) Result {
	sig := base
	applied := make([]string, 0, len(signals))
	for _, m := range signals {
		if m == nil || m.EnforcementType != contracts.EnforcementStrategySignal || m.StrategySignal == nil || !m.Active() {
			continue
		}
		if applyFeatureOverride(&sig, m.StrategySignal.Feature, m.StrategySignal.Value) {
			applied = append(applied, m.StrategySignal.Feature+"="+m.StrategySignal.Value)
		}
	}
	result := deriveFromSignature(sig)
	if len(applied) > 0 {
		result.Reasons = append(result.Reasons, "strategy_signal_overrides:"+joinComma(applied))
	}
	return result
}

func deriveFromSignature(sig ContextSignature) Result {
	switch {
	case sig.TaskTypeGuess == TaskMigration || sig.MigrationADPPresent:
		return Result{StrategyID: StrategyMigration, Reasons: []string{"migration_adp_present_or_task_type_migration"}, ContextSignature: sig}
	case sig.TaskTypeGuess == TaskDebug:
		return Result{StrategyID: StrategyDebug, Reasons: []string{"task_type_guess_debug"}, ContextSignature: sig}
	case sig.TaskTypeGuess == TaskAPIContract || sig.HasSwagger:
		return Result{StrategyID: StrategyAPIContract, Reasons: []string{"task_type_guess_api_contract_or_swagger_present"}, ContextSignature: sig}
	case sig.TaskTypeGuess == TaskUIFeature || sig.MentionsAgGrid || sig.TouchesShadowDOM:
		return Result{StrategyID: StrategyUIFeature, Reasons: []string{"task_type_guess_ui_feature_or_ui_surface_signals"}, ContextSignature: sig}
	default:
		return Result{StrategyID: StrategyDefault, Reasons: []string{"no_cascade_condition_matched"}, ContextSignature: sig}
	}
}

func applyFeatureOverride(sig *ContextSignature, feature, value string) bool {
	switch feature {
	case "has_swagger":
		sig.HasSwagger = value == "true"
	case "mentions_aggrid":
		sig.MentionsAgGrid = value == "true"
	case "behind_federation_boundary":
		sig.BehindFederationBoundary = value == "true"
	case "touches_shadow_dom":
		sig.TouchesShadowDOM = value == "true"
	case "migration_adp_present":
		sig.MigrationADPPresent = value == "true"
	case "sdf_contract_available":
		sig.SDFContractAvailable = value == "true"
	case "test_confidence_level":
		sig.TestConfidenceLevel = TestConfidence(value)
	case "task_type_guess":
		sig.TaskTypeGuess = TaskTypeGuess(value)
	case "has_route_guards":
		sig.HasRouteGuards = value == "true"
	case "has_template_directives":
		sig.HasTemplateDirectives = value == "true"
	default:
		return false
	}
	return true
}

func inferTestConfidence(in Input) TestConfidence {
	switch {
	case containsAny(in.Lexemes, "no tests", "untested"):
		return ConfidenceNone
	case containsAny(in.Lexemes, "flaky", "partial coverage"):
		return ConfidenceLow
	case containsAny(in.Lexemes, "some tests", "partial"):
		return ConfidenceMedium
	case containsAny(in.Artifacts, "coverage-report"):
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func inferTaskType(in Input) TaskTypeGuess {
	switch {
	case containsAny(in.Lexemes, "migrate", "migration", "adp", "sdf"):
		return TaskMigration
	case containsAny(in.Lexemes, "bug", "debug", "fix", "broken", "failing"):
		return TaskDebug
	case containsAny(in.Lexemes, "swagger", "openapi", "endpoint", "api contract"):
		return TaskAPIContract
	case containsAny(in.Lexemes, "ui", "component", "page", "screen", "aggrid"):
		return TaskUIFeature
	default:
		return TaskUnknown
	}
}

func containsAny(haystack []string, needles ...string) bool {
	set := make(map[string]bool, len(needles))
	for _, n := range needles {
		set[lower(n)] = true
	}
	for _, h := range haystack {
		if set[lower(h)] {
			return true
		}
		for n := range set {
			if containsSubstr(lower(h), n) {
				return true
			}
		}
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func containsSubstr(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func joinComma(xs []string) string {
	sort.Strings(xs)
	out := ""
	for i, x := range xs {
		if i > 0 {
			out += ","
		}
		out += x
	}
	return out
}
