package emit

import (
	"recomp/internal/abi"
	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// cCond renders a conditional branch's test against $zero — the
// original's r_dump_cond_branch switch on uniqueId, specialized to the
// six plain/likely opcode pairs decode.go distinguishes.
func cCond(op decode.Op, rs string) string {
	switch op {
	case decode.OpBEQ, decode.OpBEQL:
		return rs + " == 0"
	case decode.OpBNE, decode.OpBNEL:
		return rs + " != 0"
	case decode.OpBLEZ, decode.OpBLEZL:
		return "(int32_t)" + rs + " <= 0"
	case decode.OpBGTZ, decode.OpBGTZL:
		return "(int32_t)" + rs + " > 0"
	case decode.OpBLTZ, decode.OpBLTZL:
		return "(int32_t)" + rs + " < 0"
	default: // OpBGEZ, OpBGEZL
		return "(int32_t)" + rs + " >= 0"
	}
}

// beq/bne read both $rs and $rt against each other rather than $rs
// against zero; decode.go never distinguishes that at the Op level, so
// this checks directly.
func isRegPairBranch(op decode.Op) bool {
	switch op {
	case decode.OpBEQ, decode.OpBEQL, decode.OpBNE, decode.OpBNEL:
		return true
	}
	return false
}

// branchTargetAddr mirrors cfg.branchTarget: a patched address always
// wins, J/JAL carry an absolute target field rather than a relative
// displacement, and every other branch resolves PC+4+(imm<<2).
func branchTargetAddr(insn *recomp.Insn) uint32 {
	if insn.Patched {
		return insn.PatchedAddr
	}
	if insn.Op == decode.OpJ || insn.Op == decode.OpJAL {
		return insn.Target
	}
	return uint32(int32(insn.Addr) + 4 + insn.Imm*4)
}

// emitCondBranch mirrors r_dump_cond_branch[_likely]: the delay slot's
// own statement prints inline, before the goto, because a taken branch
// executes it unconditionally; a not-taken branch falls through to the
// outer per-instruction loop's own (un-skipped) print of the same
// instruction at i+1, so it still executes exactly once either way.
func (e *emitter) emitCondBranch(i int, insn *recomp.Insn, likely bool) error {
	rs := decode.RegName(insn.Rs)
	var cond string
	if isRegPairBranch(insn.Op) {
		op := effectiveOp(insn)
		cmp := "=="
		if op == decode.OpBNE || op == decode.OpBNEL {
			cmp = "!="
		}
		cond = rs + " " + cmp + " " + decode.RegName(insn.Rt)
	} else {
		cond = cCond(insn.Op, rs)
	}

	e.printf("\tif (%s) {\n", cond)
	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}
	e.printf("\t\tgoto L%x;\n", branchTargetAddr(insn))
	e.printf("\t}\n")
	if likely {
		e.printf("\telse goto L%x;\n", e.ctx.IndexToAddr(i+2))
	}
	return nil
}

func (e *emitter) emitJ(i int, insn *recomp.Insn) error {
	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}
	e.printf("\tgoto L%x;\n", branchTargetAddr(insn))
	return nil
}

// emitJal mirrors r_dump_jal: an internal target gets a direct call
// through the callee's own Go-derived signature; everything else — an
// address outside .text, or one at/before mcount — goes through a
// wrapper_<name> extern call when the symbol resolves against
// internal/abi's table, or the same indirect trampoline call jalr uses
// otherwise (the conservative liveness treatment this package already
// falls back to for an unresolved jal target).
func (e *emitter) emitJal(i int, insn *recomp.Insn) error {
	dest := branchTargetAddr(insn)
	internal := dest > e.ctx.MCountAddr && dest >= e.ctx.TextVAddr && dest < e.ctx.TextVAddr+e.ctx.TextLen

	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}

	if internal {
		fn := e.ctx.Functions[dest]
		if fn == nil {
			return fatalf(insn.Addr, diag.KindMalformed, "call target 0x%x is not a known function", dest)
		}
		e.emitInternalCall(fn)
		e.printf("\n")
		return e.err
	}

	name, ok := e.ctx.SymbolNames[dest]
	if ok {
		if ext, found := abi.Lookup(name); found {
			e.emitExternCall(ext)
			e.printf("\n")
			return e.err
		}
	}
	e.emitIndirectCall(dest)
	e.printf("\n")
	return e.err
}

// emitJalr mirrors the unresolved jalr $t9 case: the callee is only
// known at runtime, so the call goes through the same trampoline the
// function-pointer dispatch table builds, keyed by whatever address
// $rs holds.
func (e *emitter) emitJalr(i int, insn *recomp.Insn) error {
	rs := decode.RegName(insn.Rs)
	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}
	e.emitIndirectCall(rs)
	e.printf("\n")
	return e.err
}

// emitJr mirrors r_dump_instr's jr handling: a recovered jump table
// fans out to a computed goto over the case addresses idiom.Run found;
// a plain `jr $ra` packs the function's return value(s) per nret and
// returns.
func (e *emitter) emitJr(fn *recomp.Function, i int, insn *recomp.Insn) error {
	if insn.JumpTableAddr != 0 {
		return e.emitJumpTable(i, insn)
	}
	if insn.Rs != decode.RegRA {
		return fatalf(insn.Addr, diag.KindUnrecognizedIdiom, "jr to register other than $ra with no recovered jump table")
	}

	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}

	switch fn.NRet {
	case 0:
		e.printf("\treturn;\n")
	case 1:
		e.printf("\treturn v0;\n")
	default:
		e.printf("\treturn ((uint64_t)v0 << 32) | v1;\n")
	}
	return e.err
}

// emitJumpTable mirrors the computed-goto translation every IDO-shape
// switch lowers to: a static array of label addresses in the case
// table's own order, indexed by the bounds-checked index register,
// dispatched through `goto *Lswitch<addr>[idx]`. Case targets aren't
// persisted anywhere on Insn — idiom.Run only recorded where the table
// lives and how many entries it has — so this re-reads .rodata exactly
// the way cfg.addJRTableEdges already does to build the CFG edges.
func (e *emitter) emitJumpTable(i int, insn *recomp.Insn) error {
	roStart := uint32(e.ctx.RoData.VAddr)
	roEnd := roStart + uint32(len(e.ctx.RoData.Bytes))
	if insn.JumpTableAddr < roStart || insn.JumpTableAddr+insn.NumCases*4 > roEnd {
		return fatalf(insn.Addr, diag.KindMalformed, "jump table [0x%x,+%d) outside .rodata", insn.JumpTableAddr, insn.NumCases*4)
	}

	off := insn.JumpTableAddr - roStart
	targets := make([]uint32, insn.NumCases)
	for c := uint32(0); c < insn.NumCases; c++ {
		word := be32(e.ctx.RoData.Bytes, int(off+c*4))
		targets[c] = word + e.ctx.GPValue
	}

	tableName := sprintf("Lswitch_%x", insn.Addr)
	e.printf("\tstatic void *const %s[] = {", tableName)
	for c, t := range targets {
		if c > 0 {
			e.printf(", ")
		}
		e.printf("&&L%x", t)
	}
	e.printf("};\n")

	if err := e.emitInstr(nil, i+1); err != nil {
		return err
	}
	e.printf("\tgoto *%s[%s];\n", tableName, decode.RegName(insn.IndexReg))
	return nil
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}
