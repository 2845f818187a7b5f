package graphclient

import (
	"context"
	"sync"
)

// Edge is one directed, typed relationship in the InMemoryClient's graph.
type Edge struct {
	FromID string
	ToID   string
	Kind   string
	Props  map[string]any
}

// Node is one node in the InMemoryClient's graph.
type Node struct {
	ID    string
	Label string
	Props map[string]any
}

// InMemoryClient is a deterministic, in-process Client fake for tests and
// single-process deployments that have not wired a real graph database. It
// answers a narrow query vocabulary the Proof-Chain Builder needs:
// substring match on node id/name, and outgoing-edge lookup by kind.
type InMemoryClient struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges []Edge
}

// NewInMemoryClient constructs an empty graph.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{nodes: make(map[string]Node)}
}

// AddNode inserts or replaces a node.
func (c *InMemoryClient) AddNode(n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.ID] = n
}

// AddEdge appends a directed edge.
func (c *InMemoryClient) AddEdge(e Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges = append(c.edges, e)
}

func (c *InMemoryClient) VerifyConnectivity(ctx context.Context) error {
	return nil
}

// RunRead supports two query shapes used by the Proof-Chain Builder:
// "MATCH_BY_SUBSTRING" (params: "substring") and "OUTGOING_EDGES"
// (params: "fromId", "kind"). Unknown cypher strings return no rows rather
// than an error, since this is a narrow fake, not a query engine.
func (c *InMemoryClient) RunRead(ctx context.Context, cypher string, params map[string]any) ([]Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch cypher {
	case "MATCH_BY_SUBSTRING":
		needle, _ := params["substring"].(string)
		var rows []Row
		for _, n := range c.nodes {
			if containsFold(n.ID, needle) || containsFold(propString(n.Props, "name"), needle) {
				rows = append(rows, nodeRow(n))
			}
		}
		return rows, nil
	case "OUTGOING_EDGES":
		fromID, _ := params["fromId"].(string)
		kind, _ := params["kind"].(string)
		var rows []Row
		for _, e := range c.edges {
			if e.FromID != fromID {
				continue
			}
			if kind != "" && e.Kind != kind {
				continue
			}
			if n, ok := c.nodes[e.ToID]; ok {
				row := nodeRow(n)
				row["edge_kind"] = e.Kind
				rows = append(rows, row)
			}
		}
		return rows, nil
	default:
		return nil, nil
	}
}

func (c *InMemoryClient) RunWrite(ctx context.Context, cypher string, params map[string]any) error {
	return nil
}

func (c *InMemoryClient) Close() error { return nil }

func nodeRow(n Node) Row {
	row := Row{"id": n.ID, "label": n.Label}
	for k, v := range n.Props {
		row[k] = v
	}
	return row
}

func propString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	sl, subl := toLower(s), toLower(substr)
	for i := 0; i+len(subl) <= len(sl); i++ {
		if sl[i:i+len(subl)] == subl {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
