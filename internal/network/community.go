package network

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Colors assigned to communities in descending size order.
var communityPalette = []string{"red", "blue", "green", "yellow", "purple", "pink", "orange"}

// ColorOther is used for every community past the palette.
const ColorOther = "grey"

const modularityResolution = 1.0

// DetectCommunities runs Louvain modularity optimisation on the undirected
// projection of g, where reciprocal edges have their weights summed. The
// communities are returned largest first as lists of node ids; ties are broken
// by the smallest member id so the order is stable for a given seed.
func DetectCommunities(g *Graph, seed uint64) [][]string {
	if len(g.Nodes) == 0 {
		return nil
	}

	index := make(map[string]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = int64(i)
	}

	type pair struct{ a, b int64 }

	weights := make(map[pair]float64, len(g.Edges))

	for _, e := range g.Edges {
		a, b := index[e.Source], index[e.Target]
		if a > b {
			a, b = b, a
		}

		weights[pair{a, b}] += float64(e.Weight)
	}

	ug := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range g.Nodes {
		ug.AddNode(simple.Node(int64(i)))
	}

	for p, w := range weights {
		ug.SetWeightedEdge(ug.NewWeightedEdge(simple.Node(p.a), simple.Node(p.b), w))
	}

	reduced := community.Modularize(ug, modularityResolution, rand.NewPCG(seed, seed))

	var out [][]string

	for _, members := range reduced.Communities() {
		if len(members) == 0 {
			continue
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, g.Nodes[m.ID()].ID)
		}

		sort.Strings(ids)
		out = append(out, ids)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}

		return out[i][0] < out[j][0]
	})

	return out
}

// CommunityColors detects communities, records each node's community index and
// colour on the graph and returns the colour per node id.
func CommunityColors(g *Graph, seed uint64) map[string]string {
	colors := make(map[string]string, len(g.Nodes))

	for i, members := range DetectCommunities(g, seed) {
		color := ColorOther
		if i < len(communityPalette) {
			color = communityPalette[i]
		}

		for _, id := range members {
			n, ok := g.Node(id)
			if !ok {
				continue
			}

			n.Community = i
			n.Color = color
			colors[id] = color
		}
	}

	return colors
}
