package emit

import (
	"fmt"

	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// emitInstr dispatches one instruction by index to its statement form.
// Branch, jump, and call opcodes own their delay slot's printing (see
// branch.go); everything else falls through to the single-statement
// forms this file builds.
func (e *emitter) emitInstr(fn *recomp.Function, i int) error {
	insn := &e.ctx.Insns[i]
	op := effectiveOp(insn)

	switch op {
	case decode.OpBEQ, decode.OpBNE, decode.OpBLEZ, decode.OpBGTZ, decode.OpBLTZ, decode.OpBGEZ:
		return e.emitCondBranch(i, insn, false)
	case decode.OpBEQL, decode.OpBNEL, decode.OpBLEZL, decode.OpBGTZL, decode.OpBLTZL, decode.OpBGEZL:
		return e.emitCondBranch(i, insn, true)
	case decode.OpJ:
		return e.emitJ(i, insn)
	case decode.OpJAL:
		return e.emitJal(i, insn)
	case decode.OpJALR:
		return e.emitJalr(i, insn)
	case decode.OpJR:
		return e.emitJr(fn, i, insn)
	case decode.OpLWR, decode.OpSWR:
		return fatalf(insn.Addr, diag.KindUnrecognizedIdiom, "%s has no little-endian-load/partial-store analogue in the emitted program", op)
	}

	e.printf("\t%s\n", e.plainStmt(insn))
	return e.err
}

// plainStmt renders the non-control-flow instruction forms: ALU ops,
// loads/stores, shifts, multiply/divide, and the COP1 move family.
// Mirrors the bulk of r_dump_instr's opcode switch minus the jump-family
// cases, which branch.go owns.
func (e *emitter) plainStmt(insn *recomp.Insn) string {
	op := effectiveOp(insn)
	dst := decode.RegName(insn.DestReg())
	rs := decode.RegName(insn.Rs)
	rt := decode.RegName(insn.Rt)
	imm := effectiveImm(insn)

	switch op {
	case decode.OpNop:
		return "// nop"
	case decode.OpLI:
		return sprintf("%s = 0x%x;", rt, uint32(insn.PatchedAddr))
	case decode.OpMOVE:
		return sprintf("%s = %s;", rt, rs)

	case decode.OpADD, decode.OpADDU:
		return sprintf("%s = %s + %s;", dst, rs, rt)
	case decode.OpADDI, decode.OpADDIU:
		return sprintf("%s = %s + %d;", dst, rs, imm)
	case decode.OpSUB, decode.OpSUBU:
		return sprintf("%s = %s - %s;", dst, rs, rt)

	case decode.OpAND:
		return sprintf("%s = %s & %s;", dst, rs, rt)
	case decode.OpANDI:
		return sprintf("%s = %s & 0x%x;", dst, rs, uint32(imm))
	case decode.OpOR:
		return sprintf("%s = %s | %s;", dst, rs, rt)
	case decode.OpORI:
		return sprintf("%s = %s | 0x%x;", dst, rs, uint32(imm))
	case decode.OpXOR:
		return sprintf("%s = %s ^ %s;", dst, rs, rt)
	case decode.OpXORI:
		return sprintf("%s = %s ^ 0x%x;", dst, rs, uint32(imm))
	case decode.OpNOR:
		return sprintf("%s = ~(%s | %s);", dst, rs, rt)

	case decode.OpSLT:
		return sprintf("%s = (int32_t)%s < (int32_t)%s;", dst, rs, rt)
	case decode.OpSLTI:
		return sprintf("%s = (int32_t)%s < %d;", dst, rs, imm)
	case decode.OpSLTU:
		return sprintf("%s = %s < %s;", dst, rs, rt)
	case decode.OpSLTIU:
		return sprintf("%s = %s < 0x%xu;", dst, rs, uint32(imm))

	case decode.OpSLL:
		return sprintf("%s = %s << %d;", dst, rt, insn.Shamt)
	case decode.OpSRL:
		return sprintf("%s = %s >> %d;", dst, rt, insn.Shamt)
	case decode.OpSRA:
		return sprintf("%s = (uint32_t)((int32_t)%s >> %d);", dst, rt, insn.Shamt)
	case decode.OpSLLV:
		return sprintf("%s = %s << (%s & 0x1f);", dst, rt, rs)
	case decode.OpSRLV:
		return sprintf("%s = %s >> (%s & 0x1f);", dst, rt, rs)
	case decode.OpSRAV:
		return sprintf("%s = (uint32_t)((int32_t)%s >> (%s & 0x1f));", dst, rt, rs)

	case decode.OpLUI:
		return sprintf("%s = 0x%x;", dst, uint32(imm)<<16)

	case decode.OpLB:
		return sprintf("%s = (uint32_t)(int32_t)(int8_t)MEM_U8(%s + %d);", dst, memBase(e.ctx, insn), imm)
	case decode.OpLBU:
		return sprintf("%s = MEM_U8(%s + %d);", dst, memBase(e.ctx, insn), imm)
	case decode.OpLH:
		return sprintf("%s = (uint32_t)(int32_t)(int16_t)MEM_U16(%s + %d);", dst, memBase(e.ctx, insn), imm)
	case decode.OpLHU:
		return sprintf("%s = MEM_U16(%s + %d);", dst, memBase(e.ctx, insn), imm)
	case decode.OpLW, decode.OpLWU:
		return sprintf("%s = MEM_U32(%s + %d);", dst, memBase(e.ctx, insn), imm)
	case decode.OpLWL:
		return sprintf("%s = load_left(mem, %s + %d, %s);", dst, memBase(e.ctx, insn), imm, dst)

	case decode.OpSB:
		return sprintf("MEM_U8(%s + %d) = (uint8_t)%s;", memBase(e.ctx, insn), imm, rt)
	case decode.OpSH:
		return sprintf("MEM_U16(%s + %d) = (uint16_t)%s;", memBase(e.ctx, insn), imm, rt)
	case decode.OpSW:
		return sprintf("MEM_U32(%s + %d) = %s;", memBase(e.ctx, insn), imm, rt)
	case decode.OpSWL:
		return sprintf("store_left(mem, %s + %d, %s);", memBase(e.ctx, insn), imm, rt)

	case decode.OpLWC1:
		return sprintf("fpr[%d] = MEM_U32(%s + %d);", insn.Rt, memBase(e.ctx, insn), imm)
	case decode.OpSWC1:
		return sprintf("MEM_U32(%s + %d) = fpr[%d];", memBase(e.ctx, insn), imm, insn.Rt)
	case decode.OpLDC1:
		return sprintf("fpr[%d] = MEM_U32(%s + %d); fpr[%d] = MEM_U32(%s + %d);",
			insn.Rt, memBase(e.ctx, insn), imm, insn.Rt+1, memBase(e.ctx, insn), imm+4)
	case decode.OpSDC1:
		return sprintf("MEM_U32(%s + %d) = fpr[%d]; MEM_U32(%s + %d) = fpr[%d];",
			memBase(e.ctx, insn), imm, insn.Rt, memBase(e.ctx, insn), imm+4, insn.Rt+1)
	case decode.OpMTC1:
		return sprintf("fpr[%d] = %s;", insn.Rd, rt)
	case decode.OpMFC1:
		return sprintf("%s = fpr[%d];", rt, insn.Rd)

	case decode.OpMULT:
		return sprintf("temp64 = (uint64_t)((int64_t)(int32_t)%s * (int64_t)(int32_t)%s); hi = (uint32_t)(temp64 >> 32); lo = (uint32_t)temp64;", rs, rt)
	case decode.OpMULTU:
		return sprintf("temp64 = (uint64_t)%s * (uint64_t)%s; hi = (uint32_t)(temp64 >> 32); lo = (uint32_t)temp64;", rs, rt)
	case decode.OpDIV:
		return sprintf("lo = (uint32_t)((int32_t)%s / (int32_t)%s); hi = (uint32_t)((int32_t)%s %% (int32_t)%s);", rs, rt, rs, rt)
	case decode.OpDIVU:
		return sprintf("lo = %s / %s; hi = %s %% %s;", rs, rt, rs, rt)
	case decode.OpMFHI:
		return sprintf("%s = hi;", dst)
	case decode.OpMFLO:
		return sprintf("%s = lo;", dst)
	case decode.OpMTHI:
		return sprintf("hi = %s;", rs)
	case decode.OpMTLO:
		return sprintf("lo = %s;", rs)

	case decode.OpBREAK:
		return "abort();"
	case decode.OpSYSCALL:
		return "// syscall (unsupported)"
	}
	return sprintf("// unimplemented: %s", op)
}

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
