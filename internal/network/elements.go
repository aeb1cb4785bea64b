package network

// Element types understood by Cytoscape.
const (
	ElementNode = "node"
	ElementEdge = "edge"
)

// ElementData is the payload of a Cytoscape element. Node fields and edge
// fields are disjoint; unset ones are omitted.
type ElementData struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Size     int    `json:"size"`
	Color    string `json:"color"`
	SeedList string `json:"seed_list,omitempty"`
	Source   string `json:"source,omitempty"`
	Target   string `json:"target,omitempty"`
	Weight   int    `json:"weight,omitempty"`
}

// Element wraps data the way Cytoscape expects it.
type Element struct {
	Data ElementData `json:"data"`
}

// Scale holds the ranges a renderer maps node sizes and edge widths from.
type Scale struct {
	MinSize   int `json:"min_size"`
	MaxSize   int `json:"max_size"`
	MinWeight int `json:"min_weight"`
	MaxWeight int `json:"max_weight"`
}

// Elements converts g to Cytoscape elements, nodes first. Node size is the
// weighted in-degree; an edge takes the colour of its source's community.
func Elements(g *Graph) ([]Element, Scale) {
	out := make([]Element, 0, len(g.Nodes)+len(g.Edges))

	var scale Scale

	for i, n := range g.Nodes {
		if i == 0 || n.InStrength < scale.MinSize {
			scale.MinSize = n.InStrength
		}

		if n.InStrength > scale.MaxSize {
			scale.MaxSize = n.InStrength
		}

		out = append(out, Element{Data: ElementData{
			Type:     ElementNode,
			ID:       n.ID,
			Label:    n.Label,
			Size:     n.InStrength,
			Color:    nodeColor(n),
			SeedList: SeedListLabel(n.SeedLists),
		}})
	}

	for i, e := range g.Edges {
		if i == 0 || e.Weight < scale.MinWeight {
			scale.MinWeight = e.Weight
		}

		if e.Weight > scale.MaxWeight {
			scale.MaxWeight = e.Weight
		}

		color := ColorOther
		if src, ok := g.Node(e.Source); ok {
			color = nodeColor(src)
		}

		out = append(out, Element{Data: ElementData{
			Type:   ElementEdge,
			ID:     e.Source + "-" + e.Target,
			Source: e.Source,
			Target: e.Target,
			Weight: e.Weight,
			Color:  color,
		}})
	}

	return out, scale
}

func nodeColor(n *Node) string {
	if n.Color == "" {
		return ColorOther
	}

	return n.Color
}
