// Package graphclient defines the consumed Graph client interface
// (spec.md §6) and an in-memory fake suitable for tests and single-process
// deployments without a real graph database. A production driver is
// out of scope (§6): this package defines the boundary only.
package graphclient

import "context"

// Row is one row of a graph read result: a generic property bag.
type Row map[string]any

// Client is the Graph client interface the Proof-Chain Builder and
// trace_symbol_graph verb consume. Implementations must be safe for
// concurrent use — reads are parallelizable, writes are serialized per
// upsert.
type Client interface {
	VerifyConnectivity(ctx context.Context) error
	RunRead(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
	RunWrite(ctx context.Context, cypher string, params map[string]any) error
	Close() error
}
