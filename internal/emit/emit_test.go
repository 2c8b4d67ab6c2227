package emit

import (
	"strings"
	"testing"

	"recomp/internal/cfg"
	"recomp/internal/decode"
	"recomp/internal/liveness"
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

func runPipeline(t *testing.T, ctx *recomp.Context) {
	t.Helper()
	if err := cfg.Run(ctx); err != nil {
		t.Fatalf("cfg.Run: %v", err)
	}
	if err := liveness.Run(ctx); err != nil {
		t.Fatalf("liveness.Run: %v", err)
	}
}

// TestEmitSimpleArithmeticFunction checks a leaf function's body prints
// the arithmetic statement followed by a value-returning jr $ra, with a
// signature matching the inferred nargs/nret.
func TestEmitSimpleArithmeticFunction(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpOR, Rd: decode.RegV0, Rs: decode.RegA0, Rt: decode.RegA1}, // callee
		{Addr: 0x1004, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1008, Op: decode.OpNop},
	}, 0x1000, 0xc)
	ctx.MainAddr = 0x1000
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].Returns = []uint32{0x1008}

	runPipeline(t, ctx)

	var buf strings.Builder
	if err := Run(ctx, &buf, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "v0 = a0 | a1;") {
		t.Errorf("missing or/a0/a1 statement, got:\n%s", out)
	}
	if !strings.Contains(out, "return v0;") {
		t.Errorf("missing nret=1 return, got:\n%s", out)
	}
	if !strings.Contains(out, "uint32_t func_1000(uint8_t *mem, uint32_t sp, uint32_t a0, uint32_t a1)") {
		t.Errorf("signature doesn't reflect nargs=2/nret=1, got:\n%s", out)
	}
}

// TestEmitConditionalBranchPlacesDelaySlotInsideIf checks that a
// non-likely branch's delay-slot statement is printed inside the
// if-block, before the goto, not after it.
func TestEmitConditionalBranchPlacesDelaySlotInsideIf(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpBEQ, Rs: decode.RegA0, Rt: decode.RegZero, Imm: 2}, // target 0x100c
		{Addr: 0x1004, Op: decode.OpADDU, Rd: decode.RegV0, Rs: decode.RegA1, Rt: decode.RegA1},
		{Addr: 0x1008, Op: decode.OpNop},
		{Addr: 0x100c, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1010, Op: decode.OpNop},
	}, 0x1000, 0x14)
	ctx.MainAddr = 0x1000
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].Returns = []uint32{0x1010}

	runPipeline(t, ctx)

	var buf strings.Builder
	if err := Run(ctx, &buf, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()

	ifIdx := strings.Index(out, "if (a0 == zero)")
	delayIdx := strings.Index(out, "v0 = a1 + a1;")
	gotoIdx := strings.Index(out, "goto L100c;")
	if ifIdx < 0 || delayIdx < 0 || gotoIdx < 0 {
		t.Fatalf("missing expected fragments, got:\n%s", out)
	}
	if !(ifIdx < delayIdx && delayIdx < gotoIdx) {
		t.Errorf("delay slot must print between the if and the goto, got:\n%s", out)
	}
}

// TestEmitExternCallUsesWrapper checks a jal to a symbol resolving
// against internal/abi's table goes through wrapper_<name>, passing its
// declared pointer argument through $a0.
func TestEmitExternCallUsesWrapper(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJAL, Target: 0x500000}, // strlen
		{Addr: 0x1004, Op: decode.OpNop},
		{Addr: 0x1008, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x100c, Op: decode.OpNop},
	}, 0x1000, 0x10)
	ctx.MainAddr = 0x1000
	ctx.SymbolNames[0x500000] = "strlen"
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].Returns = []uint32{0x100c}

	runPipeline(t, ctx)

	var buf strings.Builder
	if err := Run(ctx, &buf, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "v0 = wrapper_strlen(mem, (uintptr_t)a0);") {
		t.Errorf("missing wrapper_strlen call, got:\n%s", out)
	}
}

// TestEmitJumpTableRecoversCaseTargets checks the computed-goto array
// is built from the same .rodata words cfg.addJRTableEdges reads, not
// from some separately-persisted case list.
func TestEmitJumpTableRecoversCaseTargets(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpJR, Rs: decode.RegT0},
		{Addr: 0x1004, Op: decode.OpNop},
		{Addr: 0x1008, Op: decode.OpNop}, // case 0 target
		{Addr: 0x100c, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1010, Op: decode.OpNop},
	}, 0x1000, 0x14)
	ctx.MainAddr = 0x1000
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].Returns = []uint32{0x1010}
	ctx.Insns[0].JumpTableAddr = 0x2000
	ctx.Insns[0].NumCases = 1
	ctx.Insns[0].IndexReg = decode.RegT1
	ctx.RoData.VAddr = 0x2000
	ctx.RoData.Bytes = []byte{0x00, 0x00, 0x10, 0x08} // case 0 -> 0x1008 (GPValue 0)

	runPipeline(t, ctx)

	var buf strings.Builder
	if err := Run(ctx, &buf, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "&&L1008") {
		t.Errorf("jump table should recover case target 0x1008 from .rodata, got:\n%s", out)
	}
	if !strings.Contains(out, "goto *Lswitch_1000[t1];") {
		t.Errorf("missing computed goto through the index register, got:\n%s", out)
	}
}

// TestEmitElidesUnreachableFunction checks a function main never calls
// and nothing references by pointer produces no body at all.
func TestEmitElidesUnreachableFunction(t *testing.T) {
	ctx := mkCtx([]decode.Inst{
		{Addr: 0x1000, Op: decode.OpNop},
		{Addr: 0x1004, Op: decode.OpJR, Rs: decode.RegRA},
		{Addr: 0x1008, Op: decode.OpNop},
	}, 0x1000, 0xc)
	ctx.AddFunction(0x1000)
	ctx.Functions[0x1000].Returns = []uint32{0x1008}
	// ctx.MainAddr left zero: nothing seeds forward liveness here.

	runPipeline(t, ctx)

	var buf strings.Builder
	if err := Run(ctx, &buf, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "func_1000") {
		t.Errorf("unreachable function should be elided entirely, got:\n%s", out)
	}
}
