package indexer

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryIndexer is a deterministic fixture-backed Indexer for tests and
// deployments that have not wired a real code index. NilIndexer (see
// below) is used when no index is configured at all.
type InMemoryIndexer struct {
	mu         sync.RWMutex
	headers    []SymbolHeader
	files      []string
	routes     []string
	guards     []string
	directives []string
	usages     []DirectiveUsage
}

// NewInMemoryIndexer constructs an indexer over a fixed fixture.
func NewInMemoryIndexer(headers []SymbolHeader, files, routes, guards, directives []string, usages []DirectiveUsage) *InMemoryIndexer {
	return &InMemoryIndexer{
		headers: headers, files: files, routes: routes,
		guards: guards, directives: directives, usages: usages,
	}
}

func (idx *InMemoryIndexer) SearchSymbol(ctx context.Context, query string, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var hits []Hit
	q := strings.ToLower(query)
	for _, h := range idx.headers {
		if strings.Contains(strings.ToLower(h.Symbol), q) {
			hits = append(hits, Hit{Symbol: h.Symbol, File: h.File})
		}
	}
	return capHits(hits, limit), nil
}

func (idx *InMemoryIndexer) SearchLexical(ctx context.Context, query string, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var hits []Hit
	q := strings.ToLower(query)
	for _, f := range idx.files {
		if strings.Contains(strings.ToLower(f), q) {
			hits = append(hits, Hit{File: f})
		}
	}
	return capHits(hits, limit), nil
}

func (idx *InMemoryIndexer) GetSymbolHeaders(ctx context.Context, limit int) ([]SymbolHeader, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := append([]SymbolHeader(nil), idx.headers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (idx *InMemoryIndexer) GetIndexedFilePaths(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.files...), nil
}

func (idx *InMemoryIndexer) GetParsedRoutes(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.routes...), nil
}

func (idx *InMemoryIndexer) GetResolvedGuards(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.guards...), nil
}

func (idx *InMemoryIndexer) GetResolvedDirectives(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.directives...), nil
}

func (idx *InMemoryIndexer) GetDirectiveUsages(ctx context.Context, limit int) ([]DirectiveUsage, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := append([]DirectiveUsage(nil), idx.usages...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func capHits(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

// NilIndexer is an Indexer that always returns empty results, matching
// spec.md §6's "optional; absence returns empty results" contract.
type NilIndexer struct{}

func (NilIndexer) SearchSymbol(ctx context.Context, query string, limit int) ([]Hit, error) {
	return nil, nil
}
func (NilIndexer) SearchLexical(ctx context.Context, query string, limit int) ([]Hit, error) {
	return nil, nil
}
func (NilIndexer) GetSymbolHeaders(ctx context.Context, limit int) ([]SymbolHeader, error) {
	return nil, nil
}
func (NilIndexer) GetIndexedFilePaths(ctx context.Context) ([]string, error) { return nil, nil }
func (NilIndexer) GetParsedRoutes(ctx context.Context) ([]string, error)     { return nil, nil }
func (NilIndexer) GetResolvedGuards(ctx context.Context) ([]string, error)   { return nil, nil }
func (NilIndexer) GetResolvedDirectives(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (NilIndexer) GetDirectiveUsages(ctx context.Context, limit int) ([]DirectiveUsage, error) {
	return nil, nil
}
