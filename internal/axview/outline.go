package axview

import "strings"

// renderOutline pre-order renders nodes into "[<encodedId>] <role>:
// <content>" lines, two-space-indented
// per depth level. Nodes with empty content omit the trailing ": <text>".
func renderOutline(nodes []*Node) string {
	var b strings.Builder
	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, n := range ns {
			b.WriteString(indent)
			b.WriteByte('[')
			b.WriteString(n.EncodedID)
			b.WriteString("] ")
			b.WriteString(role(n))
			if n.Content != "" {
				b.WriteString(": ")
				b.WriteString(n.Content)
			}
			b.WriteByte('\n')
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return strings.TrimRight(b.String(), "\n")
}

func role(n *Node) string {
	if n.Role == "" {
		return "generic"
	}
	return n.Role
}
