package network

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTriangles is two dense triangles joined by one light edge.
func twoTriangles() []Edge {
	return []Edge{
		{Source: "a", Target: "b", Weight: 10},
		{Source: "b", Target: "c", Weight: 10},
		{Source: "c", Target: "a", Weight: 10},
		{Source: "x", Target: "y", Weight: 10},
		{Source: "y", Target: "z", Weight: 10},
		{Source: "z", Target: "x", Weight: 10},
		{Source: "c", Target: "x", Weight: 1},
	}
}

func TestBuild(t *testing.T) {
	g := Build(KindForward, []Edge{
		{Source: "2", Target: "1", Weight: 3},
		{Source: "1", Target: "2", Weight: 1},
		{Source: "2", Target: "1", Weight: 2},
		{Source: "3", Target: "3", Weight: 7},
		{Source: "3", Target: "1", Weight: 4},
	})

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "1", g.Nodes[0].ID)
	assert.Len(t, g.Edges, 3)

	n1, ok := g.Node("1")
	require.True(t, ok)
	assert.Equal(t, 2, n1.InDegree)
	assert.Equal(t, 1, n1.OutDegree)
	assert.Equal(t, 9, n1.InStrength)
	assert.Equal(t, 1, n1.OutStrength)

	n3, ok := g.Node("3")
	require.True(t, ok)
	assert.Zero(t, n3.InStrength, "self-loop must be dropped")
	assert.Equal(t, 4, n3.OutStrength)
}

func TestCommunityColors(t *testing.T) {
	g := Build(KindForward, twoTriangles())

	colors := CommunityColors(g, 1)
	require.Len(t, colors, 6)

	assert.Equal(t, "red", colors["a"])
	assert.Equal(t, colors["a"], colors["b"])
	assert.Equal(t, colors["a"], colors["c"])
	assert.Equal(t, "blue", colors["x"])
	assert.Equal(t, colors["x"], colors["y"])
	assert.Equal(t, colors["x"], colors["z"])

	again := Build(KindForward, twoTriangles())
	assert.Equal(t, colors, CommunityColors(again, 1))
}

func TestCommunityColors_PaletteOverflow(t *testing.T) {
	var edges []Edge

	// nine disconnected pairs
	for _, p := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		edges = append(edges, Edge{Source: p + "1", Target: p + "2", Weight: 1})
	}

	g := Build(KindForward, edges)
	colors := CommunityColors(g, 1)

	counts := make(map[string]int)
	for _, c := range colors {
		counts[c]++
	}

	assert.Equal(t, 4, counts[ColorOther])
	assert.Equal(t, 2, counts["red"])
	assert.Equal(t, "red", colors["a1"])
	assert.Equal(t, "orange", colors["g1"])
	assert.Equal(t, ColorOther, colors["h1"])
}

func TestCommunityColors_Empty(t *testing.T) {
	assert.Empty(t, CommunityColors(Build(KindDomain, nil), 1))
}

func TestElements(t *testing.T) {
	g := Build(KindForward, twoTriangles())
	CommunityColors(g, 1)

	a, _ := g.Node("a")
	a.Label = "alpha"
	a.SeedLists = []string{"news", "politics"}

	elements, scale := Elements(g)
	require.Len(t, elements, len(g.Nodes)+len(g.Edges))

	first := elements[0].Data
	assert.Equal(t, ElementNode, first.Type)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "alpha", first.Label)
	assert.Equal(t, 10, first.Size)
	assert.Equal(t, "red", first.Color)
	assert.Equal(t, "news,politics", first.SeedList)

	var bridge ElementData

	for _, el := range elements {
		if el.Data.ID == "c-x" {
			bridge = el.Data
		}
	}

	assert.Equal(t, ElementEdge, bridge.Type)
	assert.Equal(t, "c", bridge.Source)
	assert.Equal(t, "x", bridge.Target)
	assert.Equal(t, 1, bridge.Weight)
	assert.Equal(t, "red", bridge.Color)

	assert.Equal(t, Scale{MinSize: 10, MaxSize: 11, MinWeight: 1, MaxWeight: 10}, scale)
}

func TestWriteGraphML(t *testing.T) {
	g := Build(KindDomain, []Edge{{Source: "1", Target: "example.com", Weight: 4}})
	CommunityColors(g, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteGraphML(&buf, g))

	var doc graphMLDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "directed", doc.Graph.EdgeDefault)
	assert.Len(t, doc.Graph.Nodes, 2)
	require.Len(t, doc.Graph.Edges, 1)
	assert.Equal(t, "1", doc.Graph.Edges[0].Source)
	assert.Equal(t, "example.com", doc.Graph.Edges[0].Target)
	assert.Equal(t, []graphMLData{{Key: "weight", Value: "4"}}, doc.Graph.Edges[0].Data)
	assert.Contains(t, buf.String(), `attr.name="in_strength"`)
}

func TestCypherStatements(t *testing.T) {
	g := Build(KindDomain, []Edge{
		{Source: "1", Target: "example.com", Weight: 2},
		{Source: "2", Target: "example.com", Weight: 1},
	})

	for _, n := range g.Nodes {
		n.Kind = NodeChannel
	}

	dom, _ := g.Node("example.com")
	dom.Kind = NodeDomain

	statements := cypherStatements(g)
	require.Len(t, statements, 3)

	assert.Equal(t, cypherMergeChannels, statements[0].query)
	assert.Len(t, statements[0].params["nodes"], 2)
	assert.Equal(t, cypherMergeDomains, statements[1].query)
	assert.Len(t, statements[1].params["nodes"], 1)
	assert.Equal(t, cypherMergeCitations, statements[2].query)
	assert.Len(t, statements[2].params["edges"], 2)

	assert.Empty(t, cypherStatements(Build(KindForward, nil)))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("domain")
	assert.True(t, ok)
	assert.Equal(t, KindDomain, k)

	_, ok = ParseKind("mentions")
	assert.False(t, ok)
}
