// Package indexer defines the consumed Indexer interface (spec.md §6) and
// an in-memory fake. Indexer is read-mostly and optional: its absence
// degrades handlers to empty results rather than failing them.
package indexer

import "context"

// SymbolHeader is a lightweight symbol summary.
type SymbolHeader struct {
	Symbol string
	File   string
	Kind   string
}

// Hit is one search result (symbol or lexical).
type Hit struct {
	Symbol  string
	File    string
	Line    int
	Snippet string
}

// DirectiveUsage is one usage site of a template directive.
type DirectiveUsage struct {
	Directive string
	File      string
	Line      int
}

// Indexer is the read-mostly code index the dispatcher consults for
// symbol/lexical search and AST-fallback resolution in the Proof-Chain
// Builder.
type Indexer interface {
	SearchSymbol(ctx context.Context, query string, limit int) ([]Hit, error)
	SearchLexical(ctx context.Context, query string, limit int) ([]Hit, error)
	GetSymbolHeaders(ctx context.Context, limit int) ([]SymbolHeader, error)
	GetIndexedFilePaths(ctx context.Context) ([]string, error)
	GetParsedRoutes(ctx context.Context) ([]string, error)
	GetResolvedGuards(ctx context.Context) ([]string, error)
	GetResolvedDirectives(ctx context.Context) ([]string, error)
	GetDirectiveUsages(ctx context.Context, limit int) ([]DirectiveUsage, error)
}
