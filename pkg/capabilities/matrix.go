// Package capabilities implements the capability matrix: a pure mapping
// from run state to the set of verbs a session may currently invoke.
package capabilities

import "github.com/mindburn-labs/turnctl/pkg/contracts"

// rawReadVerbs are always safe: they require neither a built context pack
// nor an accepted plan.
var rawReadVerbs = []contracts.Verb{
	contracts.VerbListAvailableVerbs,
	contracts.VerbGetOriginalPrompt,
}

// packVerbs require a built context pack (any state at or after PLANNING).
var packVerbs = []contracts.Verb{
	contracts.VerbListScopedFiles,
	contracts.VerbListDirectoryContents,
	contracts.VerbReadFileLines,
	contracts.VerbLookupSymbolDefinition,
	contracts.VerbSearchCodebaseText,
	contracts.VerbTraceSymbolGraph,
	contracts.VerbWriteScratchFile,
	contracts.VerbFetchJiraTicket,
	contracts.VerbFetchAPISpec,
	contracts.VerbSubmitExecutionPlan,
	contracts.VerbRequestEvidenceGuidance,
	contracts.VerbSignalTaskComplete,
}

// mutationVerbs require PLAN_ACCEPTED (contracts.MutationVerbs).
var mutationVerbs = []contracts.Verb{
	contracts.VerbApplyCodePatch,
	contracts.VerbRunSandboxedCode,
	contracts.VerbExecuteGatedSideEffect,
	contracts.VerbRunAutomationRecipe,
}

// Allowed returns the set of verbs permitted in state, as a pure function
// of state alone. initialize_work is the only verb allowed in
// UNINITIALIZED; every other state accumulates read/pack verbs, and
// PLAN_ACCEPTED additionally admits the mutation verbs.
func Allowed(state contracts.RunState) map[contracts.Verb]bool {
	allowed := map[contracts.Verb]bool{}

	if state == contracts.StateUninitialized {
		allowed[contracts.VerbInitializeWork] = true
		return allowed
	}

	for _, v := range rawReadVerbs {
		allowed[v] = true
	}
	for _, v := range packVerbs {
		allowed[v] = true
	}

	if state == contracts.StatePlanAccepted {
		for _, v := range mutationVerbs {
			allowed[v] = true
		}
	}

	return allowed
}

// AllowedList returns Allowed(state) as a slice, for the envelope's
// capabilities field. Order is fixed (read, pack, mutation) rather than
// map-iteration order, so responses are reproducible.
func AllowedList(state contracts.RunState) []contracts.Verb {
	allowed := Allowed(state)
	var out []contracts.Verb
	for _, group := range [][]contracts.Verb{{contracts.VerbInitializeWork}, rawReadVerbs, packVerbs, mutationVerbs} {
		for _, v := range group {
			if allowed[v] {
				out = append(out, v)
			}
		}
	}
	return out
}

// Permits reports whether verb is allowed in state.
func Permits(state contracts.RunState, verb contracts.Verb) bool {
	return Allowed(state)[verb]
}
