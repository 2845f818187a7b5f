// Package verbs implements the nineteen verb handlers the Turn Controller
// dispatches to once a verb has cleared the capability matrix and budget
// gate (spec.md §4.12).
package verbs

import (
	"context"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/artifactstore"
	"github.com/mindburn-labs/turnctl/pkg/collision"
	"github.com/mindburn-labs/turnctl/pkg/config"
	"github.com/mindburn-labs/turnctl/pkg/connector"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/enforcement"
	"github.com/mindburn-labs/turnctl/pkg/graphclient"
	"github.com/mindburn-labs/turnctl/pkg/indexer"
	"github.com/mindburn-labs/turnctl/pkg/memory"
	"github.com/mindburn-labs/turnctl/pkg/pack"
	"github.com/mindburn-labs/turnctl/pkg/planvalidator"
	"github.com/mindburn-labs/turnctl/pkg/proofchain"
	"github.com/mindburn-labs/turnctl/pkg/scope"
)

// Deps is the set of services a verb handler may call into. It is built
// once at startup and shared read-only across every invocation; any
// mutable state a handler needs lives on contracts.SessionState, guarded
// by the session's lease.
type Deps struct {
	Pack       *pack.Service
	Scope      *scope.Service
	Collision  *collision.Guard
	Memory     *memory.Service
	Enforcement *enforcement.Builder
	Validator  *planvalidator.Validator
	Codemods   *enforcement.CodemodCatalog
	Artifacts  artifactstore.Store
	Indexer    indexer.Indexer
	Graph      graphclient.Client
	ProofChain *proofchain.Builder
	Connector  connector.Connector
	Profile    *config.PolicyProfile

	Now func() time.Time
}

// Handler is the signature every verb implements: given the session's
// current state (already lease-held by the caller) and the verb's
// decoded arguments, return a result payload, zero or more deny reasons,
// and an optional forced state transition. Handlers never return a Go
// error for a domain-level rejection — that is what DenyReasons is for;
// a returned error means something went wrong with the controller itself
// (storage failure, context cancellation), and the Turn Controller reports
// it as a single opaque deny reason.
type Handler func(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error)

// Registry maps each verb to its handler.
type Registry map[contracts.Verb]Handler

// NewRegistry wires every verb to its handler.
func NewRegistry() Registry {
	return Registry{
		contracts.VerbInitializeWork:         handleInitializeWork,
		contracts.VerbListAvailableVerbs:     handleListAvailableVerbs,
		contracts.VerbGetOriginalPrompt:      handleGetOriginalPrompt,
		contracts.VerbListScopedFiles:        handleListScopedFiles,
		contracts.VerbListDirectoryContents:  handleListDirectoryContents,
		contracts.VerbReadFileLines:          handleReadFileLines,
		contracts.VerbLookupSymbolDefinition: handleLookupSymbolDefinition,
		contracts.VerbSearchCodebaseText:     handleSearchCodebaseText,
		contracts.VerbTraceSymbolGraph:       handleTraceSymbolGraph,
		contracts.VerbWriteScratchFile:       handleWriteScratchFile,
		contracts.VerbFetchJiraTicket:        handleFetchJiraTicket,
		contracts.VerbFetchAPISpec:           handleFetchAPISpec,
		contracts.VerbSubmitExecutionPlan:    handleSubmitExecutionPlan,
		contracts.VerbRequestEvidenceGuidance: handleRequestEvidenceGuidance,
		contracts.VerbApplyCodePatch:         handleApplyCodePatch,
		contracts.VerbRunSandboxedCode:       handleRunSandboxedCode,
		contracts.VerbExecuteGatedSideEffect: handleExecuteGatedSideEffect,
		contracts.VerbRunAutomationRecipe:    handleRunAutomationRecipe,
		contracts.VerbSignalTaskComplete:     handleSignalTaskComplete,
	}
}
