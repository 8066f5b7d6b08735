package provenance

import (
	"fmt"
	"sort"
	"time"

	"provgraph/pkg/models"
)

// Node is an actor or resource vertex.
type Node struct {
	ID       string
	Kind     models.NodeKind
	Label    string
	Earliest time.Time
	IoaTags  []models.IoaTag
}

// Edge is a directed multigraph edge. Count is zero for spawn edges.
type Edge struct {
	From      string
	To        string
	Action    string
	Label     string
	Count     int
	Timestamp time.Time
}

// Graph is a directed multigraph with adjacency indexes in both directions.
type Graph struct {
	nodes map[string]*Node
	edges []*Edge
	out   map[string][]*Edge
	in    map[string][]*Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// AddNode inserts n unless a node with the same id exists.
func (g *Graph) AddNode(n Node) bool {
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	cp := n
	g.nodes[n.ID] = &cp
	return true
}

// AddEdge appends e. Both endpoints must already be nodes.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("edge source %q is not a node", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("edge target %q is not a node", e.To)
	}
	cp := e
	g.edges = append(g.edges, &cp)
	g.out[e.From] = append(g.out[e.From], &cp)
	g.in[e.To] = append(g.in[e.To], &cp)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is a node.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes ordered by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// OutEdges returns edges leaving id.
func (g *Graph) OutEdges(id string) []*Edge { return g.out[id] }

// InEdges returns edges entering id.
func (g *Graph) InEdges(id string) []*Edge { return g.in[id] }

// Degree counts incident edges in both directions.
func (g *Graph) Degree(id string) int {
	return len(g.out[id]) + len(g.in[id])
}

// Subgraph returns the induced subgraph on keep. Edges keep their order.
func (g *Graph) Subgraph(keep map[string]struct{}) *Graph {
	sub := NewGraph()
	for id := range keep {
		if n, ok := g.nodes[id]; ok {
			sub.AddNode(*n)
		}
	}
	for _, e := range g.edges {
		if sub.HasNode(e.From) && sub.HasNode(e.To) {
			_ = sub.AddEdge(*e)
		}
	}
	return sub
}

// Without returns a copy of g with the given nodes and their edges removed.
func (g *Graph) Without(drop map[string]struct{}) *Graph {
	keep := make(map[string]struct{}, len(g.nodes))
	for id := range g.nodes {
		if _, ok := drop[id]; !ok {
			keep[id] = struct{}{}
		}
	}
	return g.Subgraph(keep)
}
