package network

// Edge is a weighted directed connection between two node ids.
type Edge struct {
	Source string
	Target string
	Weight int
}

// FilterByWeight keeps edges heavier than a threshold. The threshold starts at
// zero and, while the kept edges span more than maxSize nodes, is raised to the
// lightest remaining weight. A maxSize of zero or less disables the bound.
// It returns the kept edges and the final threshold.
func FilterByWeight(edges []Edge, maxSize int) ([]Edge, int) {
	threshold := 0

	for {
		kept := make([]Edge, 0, len(edges))
		lightest := 0

		for _, e := range edges {
			if e.Weight <= threshold {
				continue
			}

			kept = append(kept, e)

			if lightest == 0 || e.Weight < lightest {
				lightest = e.Weight
			}
		}

		if maxSize <= 0 || len(kept) == 0 || countNodes(kept) <= maxSize {
			return kept, threshold
		}

		threshold = lightest
		edges = kept
	}
}

// DropSelfLoops returns edges without those that start and end at the same node.
func DropSelfLoops(edges []Edge) []Edge {
	out := make([]Edge, 0, len(edges))

	for _, e := range edges {
		if e.Source != e.Target {
			out = append(out, e)
		}
	}

	return out
}

func countNodes(edges []Edge) int {
	nodes := make(map[string]struct{}, len(edges))

	for _, e := range edges {
		nodes[e.Source] = struct{}{}
		nodes[e.Target] = struct{}{}
	}

	return len(nodes)
}
