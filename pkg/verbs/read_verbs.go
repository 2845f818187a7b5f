package verbs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/scope"
)

// handleListScopedFiles returns the files currently in the session's
// context pack, without touching disk or growing anything.
func handleListScopedFiles(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	var files []string
	if sess.ContextPack != nil {
		files = sess.ContextPack.Files
	}
	return contracts.VerbResult{Result: map[string]interface{}{"files": files}}, nil
}

// handleListDirectoryContents lists a directory's immediate entries and
// grows the pack and scope allowlist with the directory's files.
func handleListDirectoryContents(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	dir := scope.Normalize(argString(args, "directory"))
	if scope.EscapesRoot("", dir) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: fmt.Sprintf("directory %q escapes the worktree root", dir),
		}}}, nil
	}

	full := filepath.Join(sess.WorktreeRoot, dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: fmt.Sprintf("cannot read directory %q: %v", dir, err),
		}}}, nil
	}

	var names []string
	var filesToGrow []string
	for _, e := range entries {
		names = append(names, e.Name())
		if !e.IsDir() {
			filesToGrow = append(filesToGrow, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)

	if sess.ContextPack != nil && len(filesToGrow) > 0 {
		grown, added, err := d.Pack.Grow(sess.ContextPack, filesToGrow)
		if err != nil {
			return contracts.VerbResult{}, err
		}
		sess.ContextPack = grown
		sess.ScopeAllowlist = d.Scope.Grow(sess.ScopeAllowlist, added, nil)
	}

	return contracts.VerbResult{Result: map[string]interface{}{"entries": names}}, nil
}

// handleReadFileLines reads a line range from a scoped file, growing the
// pack and allowlist to include it.
func handleReadFileLines(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	file := scope.Normalize(argString(args, "file"))
	if scope.EscapesRoot("", file) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: fmt.Sprintf("file %q escapes the worktree root", file),
		}}}, nil
	}

	startLine := argInt(args, "start_line", 1)
	endLine := argInt(args, "end_line", 0)

	full := filepath.Join(sess.WorktreeRoot, file)
	f, err := os.Open(full)
	if err != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: fmt.Sprintf("cannot open file %q: %v", file, err),
		}}}, nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < startLine {
			continue
		}
		if endLine > 0 && lineNo > endLine {
			break
		}
		lines = append(lines, scanner.Text())
	}

	if sess.ContextPack != nil {
		grown, added, err := d.Pack.Grow(sess.ContextPack, []string{file})
		if err != nil {
			return contracts.VerbResult{}, err
		}
		sess.ContextPack = grown
		sess.ScopeAllowlist = d.Scope.Grow(sess.ScopeAllowlist, added, nil)
	}

	return contracts.VerbResult{Result: map[string]interface{}{"file": file, "lines": lines}}, nil
}

// handleLookupSymbolDefinition resolves a symbol via the code indexer,
// growing the pack and allowlist with the defining file and symbol.
func handleLookupSymbolDefinition(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	symbol := argString(args, "symbol")
	hits, err := d.Indexer.SearchSymbol(ctx, symbol, 1)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	if len(hits) == 0 {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackInsufficient, Message: fmt.Sprintf("symbol %q not found", symbol),
		}}}, nil
	}

	hit := hits[0]
	if sess.ContextPack != nil {
		grown, added, err := d.Pack.Grow(sess.ContextPack, []string{hit.File})
		if err != nil {
			return contracts.VerbResult{}, err
		}
		sess.ContextPack = grown
		sess.ScopeAllowlist = d.Scope.Grow(sess.ScopeAllowlist, added, []string{symbol})
	}

	return contracts.VerbResult{Result: map[string]interface{}{"symbol": hit}}, nil
}

// handleSearchCodebaseText runs a lexical search via the code indexer.
// Search results do not grow the pack; listing a directory, reading a
// file, resolving a symbol and request_evidence_guidance do.
func handleSearchCodebaseText(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	limit := argInt(args, "limit", 20)
	hits, err := d.Indexer.SearchLexical(ctx, argString(args, "query"), limit)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	return contracts.VerbResult{Result: map[string]interface{}{"hits": hits}}, nil
}

// handleTraceSymbolGraph builds a hop-by-hop proof chain for a UI-origin
// anchor and returns it; an incomplete chain also carries a
// PACK_INSUFFICIENT deny reason. The pack and allowlist are not changed.
func handleTraceSymbolGraph(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	chain := argString(args, "chain")
	seed := argString(args, "seed")

	var result interface{}
	var complete bool

	switch chain {
	case "ag_grid_origin":
		r := d.ProofChain.BuildAgGridOriginChain(ctx, seed)
		complete = r.Complete
		result = r
	case "federation":
		r := d.ProofChain.BuildFederationChain(ctx, seed)
		complete = r.Complete
		result = r
	default:
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanMissingRequiredFields, Message: fmt.Sprintf("unknown chain %q", chain),
		}}}, nil
	}

	if !complete {
		return contracts.VerbResult{
			Result: map[string]interface{}{"chain": result},
			DenyReasons: []contracts.DenyReason{{
				Code:    contracts.RejectPackInsufficient,
				Message: fmt.Sprintf("proof chain for %q from seed %q is incomplete", chain, seed),
			}},
		}, nil
	}

	return contracts.VerbResult{Result: map[string]interface{}{"chain": result}}, nil
}

// handleWriteScratchFile writes content under the worktree's scratch
// area, never growing the committed scope allowlist.
func handleWriteScratchFile(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	rel := scope.Normalize(filepath.Join("scratch", argString(args, "path")))
	if scope.EscapesRoot("scratch", rel) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPackScopeViolation, Message: "scratch path escapes the scratch root",
		}}}, nil
	}

	full := filepath.Join(sess.WorktreeRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return contracts.VerbResult{}, err
	}
	if err := os.WriteFile(full, []byte(argString(args, "content")), 0o644); err != nil {
		return contracts.VerbResult{}, err
	}

	return contracts.VerbResult{Result: map[string]interface{}{"path": rel}}, nil
}
