// Package network builds weighted forwarding and domain-citation graphs from
// stored channel messages and prepares them for display and export.
package network

import (
	"sort"
)

// Kind names a network.
type Kind string

const (
	KindForward Kind = "forward"
	KindDomain  Kind = "domain"
)

// ParseKind accepts a network name.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindForward:
		return KindForward, true
	case KindDomain:
		return KindDomain, true
	default:
		return "", false
	}
}

// NodeKind distinguishes channels from cited web domains.
type NodeKind string

const (
	NodeChannel NodeKind = "channel"
	NodeDomain  NodeKind = "domain"
)

// Node carries the attributes computed for one vertex.
type Node struct {
	ID          string
	Label       string
	Kind        NodeKind
	SeedLists   []string
	InDegree    int
	OutDegree   int
	InStrength  int
	OutStrength int
	Community   int
	Color       string
}

// Graph is a weighted directed graph with per-node attributes.
type Graph struct {
	Kind      Kind
	Nodes     []*Node
	Edges     []Edge
	Threshold int

	byID map[string]*Node
}

// Build assembles a graph from edges. Parallel edges are merged by summing
// weights, self-loops are dropped, and nodes are ordered by id.
func Build(kind Kind, edges []Edge) *Graph {
	type pair struct{ source, target string }

	merged := make(map[pair]int, len(edges))
	order := make([]pair, 0, len(edges))

	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}

		p := pair{e.Source, e.Target}
		if _, ok := merged[p]; !ok {
			order = append(order, p)
		}

		merged[p] += e.Weight
	}

	g := &Graph{
		Kind:  kind,
		Edges: make([]Edge, 0, len(order)),
		byID:  make(map[string]*Node),
	}

	for _, p := range order {
		weight := merged[p]
		g.Edges = append(g.Edges, Edge{Source: p.source, Target: p.target, Weight: weight})

		src := g.ensureNode(p.source)
		src.OutDegree++
		src.OutStrength += weight

		dst := g.ensureNode(p.target)
		dst.InDegree++
		dst.InStrength += weight
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })

	return g
}

func (g *Graph) ensureNode(id string) *Node {
	if n, ok := g.byID[id]; ok {
		return n
	}

	n := &Node{ID: id, Label: id}
	g.byID[id] = n
	g.Nodes = append(g.Nodes, n)

	return n
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Empty reports whether the graph has no edges.
func (g *Graph) Empty() bool {
	return len(g.Edges) == 0
}
