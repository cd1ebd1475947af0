package graph

import (
	"sort"
	"strings"
)

// Render produces an SDL-style text rendering of the graph.
// Deterministic ordering: the root first, then node names sorted
// lexicographically; members keep declaration order.
func Render(g *Graph) string {
	if g == nil {
		return ""
	}
	var b strings.Builder

	names := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.Name != "" {
			names = append(names, n.Name)
		}
	}
	sort.Strings(names)

	renderNode(&b, g.Root(), "Root")
	for _, name := range names {
		n, _ := g.Node(name)
		renderNode(&b, n, n.Name)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderNode(b *strings.Builder, n *Node, title string) {
	renderDescription(b, n.Description, "")
	b.WriteString("type ")
	b.WriteString(title)
	b.WriteString(" {\n")
	for _, f := range n.fields {
		renderDescription(b, f.Description, "  ")
		b.WriteString("  ")
		b.WriteString(f.Name)
		b.WriteString(": Scalar\n")
	}
	for _, l := range n.links {
		renderDescription(b, l.Description, "  ")
		b.WriteString("  ")
		b.WriteString(l.Name)
		b.WriteString(": ")
		if l.Cardinality == ToMany {
			b.WriteString("[")
			b.WriteString(l.Target)
			b.WriteString("!]!")
		} else {
			b.WriteString(l.Target)
			b.WriteString("!")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderDescription(b *strings.Builder, desc, indent string) {
	if desc == "" {
		return
	}
	escaped := strings.ReplaceAll(desc, "\"", "\\\"")
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
	b.WriteString(indent)
	b.WriteString(escaped)
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
}
