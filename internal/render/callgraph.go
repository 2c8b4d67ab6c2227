package render

import (
	"fmt"
	"strings"

	"github.com/zboralski/lattice"
)

// CallGraphDOT renders a lattice.Graph (internal/callgraph's output) as
// DOT, grounded on the teacher's CallgraphDOT layout: rect nodes, directed
// edges, a dashed/gray style for the "indirect" pseudo-callee node every
// unresolved jalr site folds into.
func CallGraphDOT(g *lattice.Graph, title string, t Theme) string {
	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  nodesep=0.4;\n  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, n := range g.Nodes {
		id := dotID(n)
		label := truncLabel(n, 60)
		if n == "indirect" {
			fmt.Fprintf(&b, "  %s [label=%q, shape=ellipse, fillcolor=%q, fontcolor=%q];\n",
				id, label, t.StubFill, t.ExternalText)
		} else if strings.HasPrefix(n, "func_") {
			fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q];\n", id, label, t.StubFill)
		} else {
			fmt.Fprintf(&b, "  %s [label=%q];\n", id, label)
		}
	}
	b.WriteByte('\n')

	for _, e := range g.Edges {
		fromID, toID := dotID(e.Caller), dotID(e.Callee)
		color := t.EdgeCall
		style := "solid"
		switch {
		case e.Callee == "indirect":
			color, style = t.EdgeIndirect, "dashed"
		case strings.HasPrefix(e.Callee, "func_"):
			color = t.EdgeCall
		default:
			color = t.EdgeExtern
		}
		fmt.Fprintf(&b, "  %s -> %s [color=%q, style=%q];\n", fromID, toID, color, style)
	}

	b.WriteString("}\n")
	return b.String()
}
