package callgraph

import (
	"testing"

	"github.com/zboralski/lattice"

	"recomp/internal/decode"
	"recomp/internal/recomp"
)

func mkCtx(insns []decode.Inst, textVAddr, textLen uint32) *recomp.Context {
	ctx := recomp.NewContext(false)
	ctx.TextVAddr = textVAddr
	ctx.TextLen = textLen
	ctx.Insns = make([]recomp.Insn, len(insns))
	for i, in := range insns {
		ctx.Insns[i] = recomp.Insn{Inst: in, LinkedInsn: -1}
	}
	return ctx
}

func hasEdge(g *lattice.Graph, caller, callee string) bool {
	for _, e := range g.Edges {
		if e.Caller == caller && e.Callee == callee {
			return true
		}
	}
	return false
}

// TestBuildResolvesInternalCall checks a jal to a known function produces
// a caller->callee edge named after the callee's own symbol.
func TestBuildResolvesInternalCall(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJAL, Target: 0x1008}, // caller
		{Addr: 0x1004, Op: decode.OpNop},
		{Addr: 0x1008, Op: decode.OpJR, Rs: decode.RegRA}, // callee
		{Addr: 0x100c, Op: decode.OpNop},
	}, 0x1000, 0x10)
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].EndAddr = 0x1008
	ctx.AddFunction(0x1008)
	ctx.Functions[0x1008].EndAddr = 0x1010
	ctx.SymbolNames[0x1000] = "caller"
	ctx.SymbolNames[0x1008] = "callee"

	g := Build(ctx)
	if !hasEdge(g, "caller", "callee") {
		t.Errorf("missing caller->callee edge, got %+v", g.Edges)
	}
}

// TestBuildFoldsIndirectCalls checks every jalr site within one caller
// folds into a single shared "indirect" pseudo-callee rather than one
// node per call site.
func TestBuildFoldsIndirectCalls(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJALR, Rd: decode.RegRA, Rs: decode.RegT9},
		{Addr: 0x1004, Op: decode.OpNop},
		{Addr: 0x1008, Op: decode.OpJALR, Rd: decode.RegRA, Rs: decode.RegT9},
		{Addr: 0x100c, Op: decode.OpNop},
		{Addr: 0x1010, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1014, Op: decode.OpNop},
	}, 0x1000, 0x18)
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].EndAddr = 0x1018
	ctx.SymbolNames[0x1000] = "caller"

	g := Build(ctx)
	count := 0
	for _, e := range g.Edges {
		if e.Caller == "caller" && e.Callee == "indirect" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 indirect edge (both jalr sites folded), got %d: %+v", count, g.Edges)
	}
}
