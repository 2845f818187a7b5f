// Package proofchain implements the Proof-Chain Builder (spec.md §4.9):
// graph-backed traversal of the ag-Grid origin chain and the federation
// chain, falling back to AST/indexer evidence when the graph can't resolve
// a hop. The builder never fabricates a link it cannot evidence.
package proofchain

import (
	"context"
	"fmt"

	"github.com/mindburn-labs/turnctl/pkg/graphclient"
	"github.com/mindburn-labs/turnctl/pkg/indexer"
)

// LinkSource distinguishes how a ChainLink was resolved.
type LinkSource string

const (
	SourceGraph       LinkSource = "graph"
	SourceASTFallback LinkSource = "ast_fallback"
)

// ChainLink is one resolved hop of a proof chain.
type ChainLink struct {
	Kind   string     `json:"kind"`
	NodeID string     `json:"node_id"`
	Label  string     `json:"label"`
	Source LinkSource `json:"source"`
}

// ChainResult is the builder's output for one chain traversal.
type ChainResult struct {
	Links        []ChainLink `json:"links"`
	MissingLinks []string    `json:"missing_links"`
	Complete     bool        `json:"complete"`
}

// hopSpec describes one expected transition in a chain: the node kind it
// arrives at, the candidate graph edge kinds that could produce it (tried
// in order), and the AST-fallback search hint used when the graph can't
// resolve it.
type hopSpec struct {
	toKind       string
	edgeKinds    []string
	fallbackHint string
}

// Builder resolves proof chains against a graph client, falling back to an
// indexer when the graph is unavailable or a hop can't be resolved.
type Builder struct {
	graph    graphclient.Client
	idx      indexer.Indexer
	minLinks int
}

// New constructs a Builder. minLinks is the minimum link count a chain
// must reach to be considered complete even when MissingLinks is empty
// (e.g. a chain that resolved to zero links is never complete).
func New(graph graphclient.Client, idx indexer.Indexer, minLinks int) *Builder {
	if minLinks <= 0 {
		minLinks = 1
	}
	return &Builder{graph: graph, idx: idx, minLinks: minLinks}
}

var agGridChainHops = []hopSpec{
	{toKind: "ColumnDef", edgeKinds: []string{"HAS_COLUMN"}, fallbackHint: "columndef"},
	{toKind: "CellRenderer", edgeKinds: []string{"USES_RENDERER"}, fallbackHint: "cellrenderer"},
	{toKind: "NavTrigger", edgeKinds: []string{"TRIGGERS_NAV"}, fallbackHint: "navtrigger"},
	{toKind: "Route", edgeKinds: []string{"ROUTES_TO"}, fallbackHint: "route"},
	{toKind: "Component", edgeKinds: []string{"ROUTES_TO", "INJECTS"}, fallbackHint: "component"},
	{toKind: "Service", edgeKinds: []string{"INJECTS"}, fallbackHint: "service"},
	{toKind: "Definition", edgeKinds: []string{"INJECTS"}, fallbackHint: "definition"},
}

var federationChainHops = []hopSpec{
	{toKind: "FederationMapping", edgeKinds: []string{"LOADS_REMOTE"}, fallbackHint: "loadremotemodule"},
	{toKind: "RemoteExpose", edgeKinds: []string{"EXPOSES"}, fallbackHint: "exposes"},
	{toKind: "RemoteRoute", edgeKinds: []string{"ROUTES_TO"}, fallbackHint: "route"},
	{toKind: "DestinationComponent", edgeKinds: []string{"INJECTS", "ROUTES_TO"}, fallbackHint: "component"},
}

// BuildAgGridOriginChain resolves: agGridTable -> ColumnDef -> CellRenderer
// -> NavTrigger -> Route -> Component -> Service -> Definition.
func (b *Builder) BuildAgGridOriginChain(ctx context.Context, seed string) ChainResult {
	return b.build(ctx, "agGridTable", seed, agGridChainHops)
}

// BuildFederationChain resolves: HostRoute -> FederationMapping ->
// RemoteExpose -> RemoteRoute -> DestinationComponent.
func (b *Builder) BuildFederationChain(ctx context.Context, seed string) ChainResult {
	return b.build(ctx, "HostRoute", seed, federationChainHops)
}

func (b *Builder) build(ctx context.Context, seedKind, seed string, hops []hopSpec) ChainResult {
	result := ChainResult{}

	seedNode, ok := b.seedLookup(ctx, seedKind, seed)
	if !ok {
		result.MissingLinks = append(result.MissingLinks, seedKind)
		result.Complete = false
		return result
	}
	result.Links = append(result.Links, ChainLink{Kind: seedKind, NodeID: seedNode["id"].(string), Label: labelOf(seedNode), Source: SourceGraph})

	currentID, _ := seedNode["id"].(string)
	for _, hop := range hops {
		link, found := b.resolveHop(ctx, currentID, hop)
		if !found {
			result.MissingLinks = append(result.MissingLinks, hop.toKind)
			continue
		}
		result.Links = append(result.Links, link)
		currentID = link.NodeID
	}

	result.Complete = len(result.MissingLinks) == 0 && len(result.Links) >= b.minLinks
	return result
}

// seedLookup returns the first substring match whose label is seedKind,
// or the first match of any label when none has it.
func (b *Builder) seedLookup(ctx context.Context, seedKind, seed string) (graphclient.Row, bool) {
	if b.graph == nil {
		return nil, false
	}
	rows, err := b.graph.RunRead(ctx, "MATCH_BY_SUBSTRING", map[string]any{"substring": seed})
	if err != nil || len(rows) == 0 {
		return nil, false
	}
	for _, row := range rows {
		if label, _ := row["label"].(string); label == seedKind {
			return row, true
		}
	}
	return rows[0], true
}

func (b *Builder) resolveHop(ctx context.Context, fromID string, hop hopSpec) (ChainLink, bool) {
	if b.graph != nil {
		for _, kind := range hop.edgeKinds {
			rows, err := b.graph.RunRead(ctx, "OUTGOING_EDGES", map[string]any{"fromId": fromID, "kind": kind})
			if err != nil {
				continue
			}
			if len(rows) > 0 {
				id, _ := rows[0]["id"].(string)
				return ChainLink{Kind: hop.toKind, NodeID: id, Label: labelOf(rows[0]), Source: SourceGraph}, true
			}
		}
	}

	if b.idx != nil {
		hits, err := b.idx.SearchSymbol(ctx, hop.fallbackHint, 1)
		if err == nil && len(hits) > 0 {
			return ChainLink{
				Kind:   hop.toKind,
				NodeID: fmt.Sprintf("ast:%s:%s", hop.toKind, hits[0].Symbol),
				Label:  hits[0].Symbol,
				Source: SourceASTFallback,
			}, true
		}
	}

	return ChainLink{}, false
}

func labelOf(row graphclient.Row) string {
	if name, ok := row["name"].(string); ok && name != "" {
		return name
	}
	if label, ok := row["label"].(string); ok {
		return label
	}
	return ""
}
