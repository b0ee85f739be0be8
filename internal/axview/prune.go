package axview

// prune folds and drops structural nodes: a node with
// no inherent role semantics (role "generic"/"none") and no name is pure
// DOM scaffolding — its children are promoted into its parent's child
// list, and if it ends up with no children at all it is dropped outright.
// Landmark roles are always kept even when empty, since "an empty <nav>"
// is still meaningful structure to a caller deciding where to act next.
func prune(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		n.Children = prune(n.Children)

		if n.IsLandmark {
			out = append(out, n)
			continue
		}

		foldable := n.IsStructural && n.Content == "" && n.ChildFrameID == "" && !n.HasValue
		if !foldable {
			out = append(out, n)
			continue
		}

		if len(n.Children) == 0 {
			continue // pure scaffolding with nothing under it: drop.
		}
		out = append(out, n.Children...) // fold: promote children one level up.
	}
	return out
}
