package verbs

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// verbSchemaSource is the raw JSON Schema text for a verb's argument
// object, keyed by verb. Kept as plain string literals (rather than
// external .json files) so the schema travels with the handler it
// validates for, matching the teacher's preference for small
// self-contained files over a separate schema directory.
var verbSchemaSource = map[contracts.Verb]string{
	contracts.VerbInitializeWork: `{
		"type": "object",
		"properties": {
			"original_prompt": {"type": "string", "minLength": 1},
			"worktree_root": {"type": "string", "minLength": 1},
			"repo_snapshot_id": {"type": "string"}
		},
		"required": ["original_prompt", "worktree_root"]
	}`,
	contracts.VerbListScopedFiles: `{"type": "object"}`,
	contracts.VerbListDirectoryContents: `{
		"type": "object",
		"properties": {"directory": {"type": "string", "minLength": 1}},
		"required": ["directory"]
	}`,
	contracts.VerbReadFileLines: `{
		"type": "object",
		"properties": {
			"file": {"type": "string", "minLength": 1},
			"start_line": {"type": "integer", "minimum": 1},
			"end_line": {"type": "integer", "minimum": 1}
		},
		"required": ["file"]
	}`,
	contracts.VerbLookupSymbolDefinition: `{
		"type": "object",
		"properties": {"symbol": {"type": "string", "minLength": 1}},
		"required": ["symbol"]
	}`,
	contracts.VerbSearchCodebaseText: `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"limit": {"type": "integer", "minimum": 1}
		},
		"required": ["query"]
	}`,
	contracts.VerbTraceSymbolGraph: `{
		"type": "object",
		"properties": {
			"chain": {"type": "string", "enum": ["ag_grid_origin", "federation"]},
			"seed": {"type": "string", "minLength": 1}
		},
		"required": ["chain", "seed"]
	}`,
	contracts.VerbWriteScratchFile: `{
		"type": "object",
		"properties": {
			"path": {"type": "string", "minLength": 1},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`,
	contracts.VerbFetchJiraTicket: `{
		"type": "object",
		"properties": {"issue_key": {"type": "string", "minLength": 1}},
		"required": ["issue_key"]
	}`,
	contracts.VerbFetchAPISpec: `{
		"type": "object",
		"properties": {"swagger_ref": {"type": "string", "minLength": 1}},
		"required": ["swagger_ref"]
	}`,
	contracts.VerbSubmitExecutionPlan: `{
		"type": "object",
		"properties": {"plan": {"type": "object"}},
		"required": ["plan"]
	}`,
	contracts.VerbRequestEvidenceGuidance: `{
		"type": "object",
		"properties": {"topic": {"type": "string", "minLength": 1}},
		"required": ["topic"]
	}`,
	contracts.VerbApplyCodePatch: `{
		"type": "object",
		"properties": {
			"node_id": {"type": "string", "minLength": 1},
			"target_file": {"type": "string", "minLength": 1},
			"patch": {"type": "string", "minLength": 1}
		},
		"required": ["node_id", "target_file", "patch"]
	}`,
	contracts.VerbRunSandboxedCode: `{
		"type": "object",
		"properties": {
			"node_id": {"type": "string", "minLength": 1},
			"wasm_module_ref": {"type": "string", "minLength": 1},
			"timeout_ms": {"type": "integer", "minimum": 1},
			"memory_cap_mb": {"type": "integer", "minimum": 1}
		},
		"required": ["node_id", "wasm_module_ref"]
	}`,
	contracts.VerbExecuteGatedSideEffect: `{
		"type": "object",
		"properties": {
			"node_id": {"type": "string", "minLength": 1},
			"commit_gate_id": {"type": "string", "minLength": 1}
		},
		"required": ["node_id", "commit_gate_id"]
	}`,
	contracts.VerbRunAutomationRecipe: `{
		"type": "object",
		"properties": {
			"node_id": {"type": "string", "minLength": 1},
			"recipe_id": {"type": "string", "minLength": 1}
		},
		"required": ["node_id", "recipe_id"]
	}`,
	contracts.VerbSignalTaskComplete: `{
		"type": "object",
		"properties": {"summary": {"type": "string"}},
		"required": []
	}`,
}

var compiledSchemas map[contracts.Verb]*jsonschema.Schema

func init() {
	compiledSchemas = make(map[contracts.Verb]*jsonschema.Schema, len(verbSchemaSource))
	for verb, src := range verbSchemaSource {
		compiler := jsonschema.NewCompiler()
		resourceName := fmt.Sprintf("%s.json", verb)
		if err := compiler.AddResource(resourceName, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("verbs: invalid embedded schema for %s: %v", verb, err))
		}
		schema, err := compiler.Compile(resourceName)
		if err != nil {
			panic(fmt.Sprintf("verbs: compile schema for %s: %v", verb, err))
		}
		compiledSchemas[verb] = schema
	}
}

// ValidateArgs validates args against verb's JSON Schema, returning a
// RejectPlanMissingRequiredFields-coded deny reason on failure. A verb
// with no registered schema is treated as argument-free.
func ValidateArgs(verb contracts.Verb, args map[string]interface{}) *contracts.DenyReason {
	schema, ok := compiledSchemas[verb]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := schema.Validate(args); err != nil {
		return &contracts.DenyReason{
			Code:    contracts.RejectPlanMissingRequiredFields,
			Message: fmt.Sprintf("invalid arguments for %s: %v", verb, err),
		}
	}
	return nil
}

// Descriptions returns the self-documentation surfaced on every envelope
// and by list_available_verbs.
func Descriptions() map[contracts.Verb]contracts.VerbDescription {
	return map[contracts.Verb]contracts.VerbDescription{
		contracts.VerbInitializeWork: {
			Description:  "Start a new session: record the original prompt and worktree root.",
			WhenToUse:    "First call of a session, before any other verb is reachable.",
			RequiredArgs: []string{"original_prompt", "worktree_root"},
			OptionalArgs: []string{"repo_snapshot_id"},
		},
		contracts.VerbListAvailableVerbs: {
			Description: "List the verbs currently reachable from this session's state, plus the known codemod catalog.",
			WhenToUse:   "Whenever unsure what is currently permitted.",
		},
		contracts.VerbGetOriginalPrompt: {
			Description: "Return the original task prompt this session was initialized with.",
			WhenToUse:   "To re-read the task without re-deriving it from memory.",
		},
		contracts.VerbListScopedFiles: {
			Description: "List every file currently in the session's context pack.",
			WhenToUse:   "To see what has already been pulled into scope.",
		},
		contracts.VerbListDirectoryContents: {
			Description:  "List the immediate entries of a directory under the worktree root, growing the pack with its files; the directory is not checked against the scope allowlist.",
			WhenToUse:    "To discover files before reading them.",
			RequiredArgs: []string{"directory"},
		},
		contracts.VerbReadFileLines: {
			Description:  "Read a range of lines from a file, growing the pack to include it.",
			WhenToUse:    "To inspect file content before citing it as evidence.",
			RequiredArgs: []string{"file"},
			OptionalArgs: []string{"start_line", "end_line"},
		},
		contracts.VerbLookupSymbolDefinition: {
			Description:  "Resolve a symbol to its defining file and header via the code indexer.",
			WhenToUse:    "To confirm a symbol exists before citing it in a change node.",
			RequiredArgs: []string{"symbol"},
		},
		contracts.VerbSearchCodebaseText: {
			Description:  "Lexically search the codebase for a query string.",
			WhenToUse:    "To find candidate files/symbols by keyword.",
			RequiredArgs: []string{"query"},
			OptionalArgs: []string{"limit"},
		},
		contracts.VerbTraceSymbolGraph: {
			Description:  "Build a hop-by-hop proof chain (ag-Grid origin or federation) from a seed node.",
			WhenToUse:    "To establish an origin anchor required before citing a UI-feature change.",
			RequiredArgs: []string{"chain", "seed"},
		},
		contracts.VerbWriteScratchFile: {
			Description:  "Write a scratch file inside the worktree root, outside the committed scope.",
			WhenToUse:    "To stash working notes or intermediate artifacts.",
			RequiredArgs: []string{"path", "content"},
		},
		contracts.VerbFetchJiraTicket: {
			Description:  "Fetch a Jira issue via the configured connector and attach it as a session artifact.",
			WhenToUse:    "When a plan node needs a requirement-source citation.",
			RequiredArgs: []string{"issue_key"},
		},
		contracts.VerbFetchAPISpec: {
			Description:  "Fetch a Swagger/OpenAPI spec via the configured connector and attach it as a session artifact.",
			WhenToUse:    "When a plan node needs an API-contract citation.",
			RequiredArgs: []string{"swagger_ref"},
		},
		contracts.VerbSubmitExecutionPlan: {
			Description:  "Submit a plan graph for validation; on acceptance the session enters PLAN_ACCEPTED.",
			WhenToUse:    "Once evidence gathering is complete and a plan is ready to execute.",
			RequiredArgs: []string{"plan"},
		},
		contracts.VerbRequestEvidenceGuidance: {
			Description:  "Search the code index for a topic and grow the context pack with what it finds, returning the pack delta.",
			WhenToUse:    "When a plan submission was rejected for insufficient evidence.",
			RequiredArgs: []string{"topic"},
		},
		contracts.VerbApplyCodePatch: {
			Description:  "Write the patch argument as the full new content of the file named by an accepted change node.",
			WhenToUse:    "Executing a change node of the accepted plan.",
			RequiredArgs: []string{"node_id", "target_file", "patch"},
		},
		contracts.VerbRunSandboxedCode: {
			Description:  "Run a WASI module inside the sandbox runtime for a validate node.",
			WhenToUse:    "Executing a validate node of the accepted plan.",
			RequiredArgs: []string{"node_id", "wasm_module_ref"},
			OptionalArgs: []string{"timeout_ms", "memory_cap_mb"},
		},
		contracts.VerbExecuteGatedSideEffect: {
			Description:  "Perform an external side effect gated by the plan's approved commit-gate set.",
			WhenToUse:    "Executing a side_effect node of the accepted plan.",
			RequiredArgs: []string{"node_id", "commit_gate_id"},
		},
		contracts.VerbRunAutomationRecipe: {
			Description:  "Run a named automation recipe against the worktree.",
			WhenToUse:    "Executing a side_effect node whose payload is a recipe invocation.",
			RequiredArgs: []string{"node_id", "recipe_id"},
		},
		contracts.VerbSignalTaskComplete: {
			Description: "Declare the session's work complete; only accepted once every plan node is done.",
			WhenToUse:   "After every node in the accepted plan has been executed.",
			OptionalArgs: []string{"summary"},
		},
	}
}
