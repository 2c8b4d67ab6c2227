package render

import (
	"fmt"
	"strings"

	"recomp/internal/disasm"
	"recomp/internal/recomp"
)

// CFGDOT renders one function's instruction-level CFG as DOT, one node per
// instruction (rather than per basic block — pass 3 builds edges at
// instruction granularity, including delay slots as their own nodes, so
// this renders at the same granularity instead of re-deriving block
// boundaries). Grounded on the teacher's CFGDOT layout and T/F edge
// coloring for conditional branches.
func CFGDOT(ctx *recomp.Context, fn *recomp.Function, t Theme) string {
	startIdx, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return ""
	}
	endIdx, err := ctx.AddrToIndex(fn.EndAddr)
	if err != nil {
		endIdx = len(ctx.Insns)
	}

	name := ctx.SymbolNames[fn.Entry]
	if name == "" {
		name = fmt.Sprintf("func_%x", fn.Entry)
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n  nodesep=0.3;\n  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteString("  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(name))
	b.WriteByte('\n')

	for i := startIdx; i < endIdx && i < len(ctx.Insns); i++ {
		in := ctx.Insns[i].Inst
		id := fmt.Sprintf("i%d", i)
		label := dotEscape(fmt.Sprintf("0x%x: %s", in.Addr, disasm.Text(in)))
		attrs := ""
		if i == startIdx {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeExtern)
		}
		fmt.Fprintf(&b, "  %s [label=%q%s];\n", id, label, attrs)
	}
	b.WriteByte('\n')

	for i := startIdx; i < endIdx && i < len(ctx.Insns); i++ {
		for _, e := range ctx.Insns[i].Succs {
			if e.I < 0 || e.I >= len(ctx.Insns) {
				continue
			}
			from, to := fmt.Sprintf("i%d", i), fmt.Sprintf("i%d", e.I)
			color := t.EdgeBranch
			switch {
			case e.FunctionEntry, e.ExternFunction:
				color = t.EdgeCall
			case e.FunctionPtr:
				color = t.EdgeIndirect
			}
			fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, color)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
