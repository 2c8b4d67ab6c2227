// Package callgraph builds a lattice.Graph of caller/callee relationships
// from a finished analysis Context, for the `recomp graph` debug
// subcommand. A node is a recovered function (named, or func_<addr> for an
// unnamed one); an edge is a jal/jalr site pass 3 tagged as a call rather
// than a plain branch.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// FuncName returns ctx's symbol name for addr, or a func_<addr> placeholder
// when nothing resolved one.
func FuncName(ctx *recomp.Context, addr uint32) string {
	if name, ok := ctx.SymbolNames[addr]; ok {
		return name
	}
	return fmt.Sprintf("func_%x", addr)
}

// callTarget mirrors emitJal/emitJalr's own classification: an
// idiom-recovered RewriteOp (a jalr resolved to a jal) replaces the decoded
// opcode, a patched address replaces a jal's encoded target, an internal
// jal resolves to a known function, an extern one resolves through
// ctx.SymbolNames, and a jalr's target is only known at runtime.
func callTarget(ctx *recomp.Context, insn *recomp.Insn) (callee string, ok bool) {
	op := insn.Op
	if insn.RewriteOp != decode.OpInvalid {
		op = insn.RewriteOp
	}
	switch op {
	case decode.OpJAL:
		target := insn.Target
		if insn.Patched {
			target = insn.PatchedAddr
		}
		return FuncName(ctx, target), true
	case decode.OpJALR:
		return "indirect", true
	}
	return "", false
}

// Build walks every function's instructions looking for jal/jalr call
// sites and returns the lattice.Graph connecting callers to callees. An
// indirect jalr's actual target is only known at runtime, so every such
// site within a function is folded into a single "indirect" pseudo-callee
// for that caller.
func Build(ctx *recomp.Context) *lattice.Graph {
	g := &lattice.Graph{}
	seen := map[string]bool{}
	addNode := func(name string) {
		if !seen[name] {
			seen[name] = true
			g.Nodes = append(g.Nodes, name)
		}
	}

	for _, fn := range ctx.FunctionsInOrder() {
		callerName := FuncName(ctx, fn.Entry)
		addNode(callerName)

		startIdx, err := ctx.AddrToIndex(fn.Entry)
		if err != nil {
			continue
		}
		endIdx, err := ctx.AddrToIndex(fn.EndAddr)
		if err != nil {
			endIdx = len(ctx.Insns)
		}

		for i := startIdx; i < endIdx && i < len(ctx.Insns); i++ {
			callee, ok := callTarget(ctx, &ctx.Insns[i])
			if !ok {
				continue
			}
			addNode(callee)
			g.Edges = append(g.Edges, lattice.Edge{Caller: callerName, Callee: callee})
		}
	}

	g.Dedup()
	return g
}
