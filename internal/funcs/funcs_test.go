package funcs

import (
	"testing"

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

func TestCollectReturnsRegistersReturn(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpADDIU},
		{Addr: 0x1004, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1008, Op: decode.OpNop},
	}, 0x1000, 12)
	ctx.AddFunction(0x1000)

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fn := ctx.Functions[0x1000]
	if len(fn.Returns) != 1 || fn.Returns[0] != 0x1008 {
		t.Fatalf("returns = %v, want [0x1008]", fn.Returns)
	}
}

func TestCollectReturnsFatalWhenOutsideFunction(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJR, Rs: decode.RegRA},
	}, 0x1000, 4)
	// no function registered at all

	if err := Run(ctx); err == nil {
		t.Fatal("expected error for jr $ra outside any known function")
	}
}

func TestCollectReturnsRegistersFunctionPointer(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1004, Op: decode.OpLW, Rt: decode.RegT0},
	}, 0x1000, 0x1000)
	ctx.AddFunction(0x1000)
	ctx.Insns[1].IsGlobalGOTMemop = true
	ctx.Insns[1].PatchedAddr = 0x1800 // inside .text
	ctx.MCountAddr = 0x1800           // this synthetic function body has no instructions of its own

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ctx.LIFunctionPointers[0x1800] {
		t.Error("0x1800 should be registered as an li function pointer")
	}
	fn, ok := ctx.Functions[0x1800]
	if !ok || !fn.ReferencedByFunctionPointer {
		t.Fatalf("0x1800 should be a function referenced by a function pointer, got %+v", fn)
	}
}

func TestFinalizeFunctionsAssignsEndAddr(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1004, Op: decode.OpNop},
		{Addr: 0x1008, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x100c, Op: decode.OpNop},
	}, 0x1000, 16)
	ctx.AddFunction(0x1000)
	ctx.AddFunction(0x1008)

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Functions[0x1000].EndAddr != 0x1008 {
		t.Errorf("first function end_addr = 0x%x, want 0x1008", ctx.Functions[0x1000].EndAddr)
	}
	if ctx.Functions[0x1008].EndAddr != 0x1010 {
		t.Errorf("last function end_addr = 0x%x, want 0x1010", ctx.Functions[0x1008].EndAddr)
	}
}

func TestResolveMissingReturnStartIsExempt(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpNop},
	}, 0x1000, 4)
	ctx.AddFunction(0x1000)
	ctx.SymbolNames[0x1000] = "__start"

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ctx.Functions[0x1000].Returns) != 0 {
		t.Error("__start should not gain a synthesized return")
	}
}

func TestResolveMissingReturnTailCallShim(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpLW, Rs: decode.RegGP, Rt: decode.RegT9},
		{Addr: 0x1004, Op: decode.OpADDU, Rd: decode.RegT7, Rs: decode.RegRA, Rt: decode.RegZero},
		{Addr: 0x1008, Op: decode.OpJALR, Rs: decode.RegT9, Rd: decode.RegRA},
	}, 0x1000, 12)
	ctx.AddFunction(0x1000)

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ctx.Functions[0x1000].Returns) != 0 {
		t.Error("tail-call shim should not gain a synthesized return")
	}
}

func TestResolveMissingReturnFatalPastMCount(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpNop},
	}, 0x1000, 4)
	ctx.AddFunction(0x1000)
	ctx.MCountAddr = 0x0800 // below the function entry

	if err := Run(ctx); err == nil {
		t.Fatal("expected error for a function past mcount with no return and no known wrapper shape")
	}
}

func TestResolveMissingReturnToleratedBeforeMCount(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpNop},
	}, 0x1000, 4)
	ctx.AddFunction(0x1000)
	ctx.MCountAddr = 0x2000 // above the function entry

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestSynthesizeXmallocIDO53 builds the IDO 5.3 xmalloc prologue shape
// (the doc comment on synthesizeXmalloc) and checks it collapses to a
// direct jal/li/jr sequence with the fused GOT-global li carried forward.
func TestSynthesizeXmallocIDO53(t *testing.T) {
	insns := make([]decode.Inst, 9)
	for i := range insns {
		insns[i] = decode.Inst{Addr: 0x1000 + uint32(i*4), Op: decode.OpNop}
	}
	// index 4: the fused $a1 = malloc_scb load, already collapsed to li by idiom recovery.
	insns[4] = decode.Inst{Addr: 0x1010, Op: decode.OpLW, Rt: decode.RegA1}
	// index 6: not ori/addiu, so the 5.3 (not 7.1) branch is taken.
	insns[6] = decode.Inst{Addr: 0x1018, Op: decode.OpSW, Rt: decode.RegRA}

	ctx := mkCtx(insns, 0x1000, uint32(len(insns)*4))
	ctx.Insns[4].RewriteOp = decode.OpLI
	ctx.Insns[4].PatchedAddr = 0x500000
	ctx.AddFunction(0x1000)
	ctx.SymbolNames[0x1000] = "xmalloc"
	ctx.SymbolNames[0x1000+7*4] = "alloc_new"

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jal := ctx.Insns[0]
	if jal.Op != decode.OpJAL || jal.PatchedAddr != 0x1000+7*4 {
		t.Fatalf("entry not rewritten to jal alloc_new: %+v", jal)
	}
	li := ctx.Insns[1]
	if li.RewriteOp != decode.OpLI || li.PatchedAddr != 0x500000 || li.Rt != decode.RegA1 {
		t.Fatalf("li not carried forward to entry+1: %+v", li)
	}
	jr := ctx.Insns[2]
	if jr.Op != decode.OpJR || jr.Rs != decode.RegRA {
		t.Fatalf("entry+2 should be a synthesized jr $ra: %+v", jr)
	}
	for i := 3; i <= 6; i++ {
		if ctx.Insns[i].Op != decode.OpNop {
			t.Errorf("entry+%d should be a synthesized nop: %+v", i, ctx.Insns[i])
		}
	}
	fn := ctx.Functions[0x1000]
	if len(fn.Returns) != 1 || fn.Returns[0] != ctx.Insns[2].Addr+4 {
		t.Fatalf("xmalloc should gain one synthesized return, got %v", fn.Returns)
	}
}

// TestSynthesizeXfree builds the xfree deallocator shape and checks the
// same collapse happens against alloc_dispose.
func TestSynthesizeXfree(t *testing.T) {
	insns := make([]decode.Inst, 6)
	for i := range insns {
		insns[i] = decode.Inst{Addr: 0x2000 + uint32(i*4), Op: decode.OpNop}
	}
	insns[3] = decode.Inst{Addr: 0x200c, Op: decode.OpLW, Rt: decode.RegA1}

	ctx := mkCtx(insns, 0x2000, uint32(len(insns)*4))
	ctx.Insns[3].RewriteOp = decode.OpLI
	ctx.Insns[3].PatchedAddr = 0x500100
	ctx.AddFunction(0x2000)
	ctx.SymbolNames[0x2000] = "xfree"
	ctx.SymbolNames[0x2000+4*4] = "alloc_dispose"

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jal := ctx.Insns[0]
	if jal.Op != decode.OpJAL || jal.PatchedAddr != 0x2000+4*4 {
		t.Fatalf("entry not rewritten to jal alloc_dispose: %+v", jal)
	}
	li := ctx.Insns[1]
	if li.RewriteOp != decode.OpLI || li.PatchedAddr != 0x500100 {
		t.Fatalf("li not carried forward to entry+1: %+v", li)
	}
	jr := ctx.Insns[2]
	if jr.Op != decode.OpJR || jr.Rs != decode.RegRA {
		t.Fatalf("entry+2 should be a synthesized jr $ra: %+v", jr)
	}
	if ctx.Insns[3].Op != decode.OpNop {
		t.Errorf("entry+3 should be a synthesized nop: %+v", ctx.Insns[3])
	}
	fn := ctx.Functions[0x2000]
	if len(fn.Returns) != 1 || fn.Returns[0] != ctx.Insns[2].Addr+4 {
		t.Fatalf("xfree should gain one synthesized return, got %v", fn.Returns)
	}
}
