// Package idiom recovers the address-materialization and control-flow
// idioms an optimizing MIPS compiler spreads across several instructions:
// %hi/%lo pairs and GOT-relative loads collapse into a single fused
// address, `jalr $t9` indirect calls resolve back to their target when the
// load that set $t9 is itself resolvable, and `jr` dispatch through a
// compiler-generated jump table is recognized and its case targets
// recovered from .rodata.
package idiom

import (
	"math"

	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// Run performs the single linear pass over ctx.Insns that recovers these
// idioms and patches the affected instructions in place, mirroring
// r_pass1's single sweep (HI/LO fusion, jump-table recognition, jalr/$t9
// resolution, and the floating-point li and $gp-preamble special cases all
// interleaved in the one loop, exactly as the original orders them).
func Run(ctx *recomp.Context) error {
	for i := range ctx.Insns {
		insn := &ctx.Insns[i]

		rewriteBgezalZero(insn)

		if err := recordJumpTargets(ctx, i); err != nil {
			return err
		}

		switch insn.Op {
		case decode.OpMTC1:
			linkFloatingPointLI(ctx, i)

		case decode.OpSB, decode.OpSH, decode.OpSW,
			decode.OpLB, decode.OpLBU, decode.OpLH, decode.OpLHU, decode.OpLW, decode.OpLWU,
			decode.OpLWC1, decode.OpSWC1, decode.OpLDC1, decode.OpSDC1:
			if err := resolveMemop(ctx, i); err != nil {
				return err
			}

		case decode.OpADDIU, decode.OpORI:
			resolveImmediate(ctx, i)

		case decode.OpJALR:
			if insn.Rs == decode.RegT9 {
				linkWithJALR(ctx, i)
				if insn.LinkedInsn != -1 {
					insn.Patched = true
					insn.PatchedAddr = insn.LinkedValue
					insn.RewriteOp = decode.OpJAL
					ctx.LabelAddresses[insn.LinkedValue] = true
					ctx.AddFunction(insn.LinkedValue)
				}
			}
		}

		collapseGPReestablish(ctx, i)
	}
	return nil
}

// rewriteBgezalZero turns `bgezal $zero, target` into an unconditional
// `jal target` — $zero is never negative, so the branch always taken but
// the compiler emitted it as a branch-and-link rather than a plain jal.
func rewriteBgezalZero(insn *recomp.Insn) {
	if insn.Op == decode.OpBGEZAL && insn.Rs == decode.RegZero {
		insn.Patched = true
		insn.PatchedAddr = uint32(int32(insn.Addr) + 4 + insn.Imm*4)
		insn.RewriteOp = decode.OpJAL
	}
}

// branchTarget computes a conditional branch's absolute target the way
// MIPS PC-relative branches are defined: the address of the delay slot
// (addr+4) plus the sign-extended offset scaled by 4.
func branchTarget(insn decode.Inst) uint32 {
	return uint32(int32(insn.Addr) + 4 + insn.Imm*4)
}

func isConditionalBranch(op decode.Op) bool {
	switch op {
	case decode.OpBEQ, decode.OpBNE, decode.OpBLEZ, decode.OpBGTZ, decode.OpBLTZ, decode.OpBGEZ,
		decode.OpBGEZAL, decode.OpBLTZAL,
		decode.OpBEQL, decode.OpBNEL, decode.OpBLEZL, decode.OpBGTZL, decode.OpBLTZL, decode.OpBGEZL:
		return true
	}
	return false
}

// recordJumpTargets mirrors r_pass1's top-level isJump dispatch: J/JAL
// register a label and a function entry, JR attempts jump-table
// recognition, and every other branch just registers its target as a
// label (it stays within the current function).
func recordJumpTargets(ctx *recomp.Context, i int) error {
	insn := &ctx.Insns[i]
	switch {
	case insn.Op == decode.OpJ || insn.Op == decode.OpJAL:
		target := insn.Target
		if insn.Patched {
			target = insn.PatchedAddr
		}
		ctx.LabelAddresses[target] = true
		ctx.AddFunction(target)

	case insn.Op == decode.OpJR:
		return recognizeJumpTable(ctx, i)

	case isConditionalBranch(insn.Op):
		ctx.LabelAddresses[branchTarget(insn.Inst)] = true
	}
	return nil
}

// collapseGPReestablish NOPs out the 3-instruction `addu $gp,$gp,$t9`
// preamble PIC functions use to reestablish their own $gp from the $t9
// they were called through — once GOT-relative operands are fused to
// absolute addresses during this same pass, the preamble is dead weight.
func collapseGPReestablish(ctx *recomp.Context, i int) {
	insn := ctx.Insns[i]
	if insn.Op != decode.OpADD && insn.Op != decode.OpADDU {
		return
	}
	if !(insn.Rd == decode.RegGP && insn.Rs == decode.RegGP && insn.Rt == decode.RegT9) || i < 2 {
		return
	}
	for j := i - 2; j <= i; j++ {
		ctx.Insns[j].Patched = true
		ctx.Insns[j].RewriteOp = decode.OpNop
	}
}

// linkFloatingPointLI recovers a float constant materialized as
// `lui $at,hi16 ; mtc1 $at,$fX` (no lo16 half — floats only need the top
// 16 bits of mantissa+exponent in the common case) by walking backward
// from the mtc1 for the matching lui, the way r_pass1's mtc1 case does.
func linkFloatingPointLI(ctx *recomp.Context, i int) {
	rt := ctx.Insns[i].Rt
	for s := i - 1; s >= 0; s-- {
		in := &ctx.Insns[s]
		switch in.Op {
		case decode.OpLUI:
			if in.Rt == rt {
				hi := uint32(in.Imm) << 16
				in.LinkedInsn = i
				in.LinkedFloat = math.Float32frombits(hi)
				in.Patched = true
				in.PatchedAddr = hi
				in.RewriteOp = decode.OpLI
			}
			return

		case decode.OpLW, decode.OpADDIU, decode.OpADD, decode.OpSUB, decode.OpSUBU:
			if rt == in.DestReg() {
				return
			}

		case decode.OpJR:
			if in.Rs == decode.RegRA {
				return
			}
		}
	}
}

// resolveMemop handles load/store instructions: a $gp-relative operand is
// a GOT-global reference resolved directly from ctx.GOTGlobals, anything
// else is sent to linkWithLUI to search for the %hi that paired with it.
func resolveMemop(ctx *recomp.Context, i int) error {
	insn := &ctx.Insns[i]
	memRs, memImm := insn.Rs, insn.Imm

	if memRs != decode.RegGP {
		linkWithLUI(ctx, i, memRs, memImm)
		return nil
	}

	gotEntry := (uint32(memImm) + ctx.GPValueAdj) / 4
	if int(gotEntry) < len(ctx.GOTLocals) {
		return nil
	}
	gotEntry -= uint32(len(ctx.GOTLocals))
	if int(gotEntry) >= len(ctx.GOTGlobals) {
		return nil
	}
	if insn.Op != decode.OpLW {
		return diag.Fatalf(diag.KindUnrecognizedIdiom, "0x%x: non-lw $gp-relative global GOT memop", insn.Addr)
	}

	destVaddr := ctx.GOTGlobals[gotEntry]
	insn.IsGlobalGOTMemop = true
	insn.LinkedValue = destVaddr
	insn.Patched = true
	insn.RewriteOp = decode.OpLI
	insn.PatchedAddr = destVaddr
	return nil
}

// resolveImmediate handles addiu/ori: addiu/ori $rt,$zero,imm is already a
// plain li and needs no fusion. Everything else may be the lo16 half of a
// %hi/%lo pair, so it's sent to linkWithLUI to search for the matching lui.
// (insn.Rd is always RegZero here — addiu/ori is I-type and has no rd
// field — so the original's accompanying "rd != $gp" check never excludes
// anything; it is not reproduced.)
func resolveImmediate(ctx *recomp.Context, i int) {
	insn := ctx.Insns[i]
	if insn.Rs == decode.RegZero {
		return
	}
	linkWithLUI(ctx, i, insn.Rs, insn.Imm)
}

// linkWithLUI searches backward from offset for the lui (or GOT-local lw)
// that materialized reg's upper bits, bounded to the configured lookback
// window. A plain lui match only terminates the search — fusing its
// value requires the lw-from-$gp shape below, since that is the only
// case the original actually patches.
func linkWithLUI(ctx *recomp.Context, offset int, reg byte, memImm int32) {
	lookback := ctx.Diag.EffectiveLookback()
	end := offset - lookback
	if end < 0 {
		end = 0
	}

	for search := offset - 1; search >= end; search-- {
		in := &ctx.Insns[search]
		switch in.Op {
		case decode.OpLUI:
			if reg == in.Rt {
				return
			}

		case decode.OpLW, decode.OpADDIU, decode.OpADD, decode.OpSUB, decode.OpSUBU:
			if reg != in.DestReg() {
				continue
			}
			if !(in.Op == decode.OpLW && in.Rs == decode.RegGP) {
				// reg holds a pointer and memImm is a struct member offset.
				return
			}

			gotEntry := (uint32(in.Imm) + ctx.GPValueAdj) / 4
			if int(gotEntry) >= len(ctx.GOTLocals) {
				return
			}

			addr := ctx.GOTLocals[gotEntry] + uint32(memImm)
			in.LinkedInsn = offset
			in.LinkedValue = addr
			ctx.Insns[offset].LinkedInsn = search
			ctx.Insns[offset].LinkedValue = addr

			in.Patched = true
			in.RewriteOp = decode.OpLI
			in.PatchedAddr = addr

			patchHILOConsumer(ctx, offset, addr)
			return

		case decode.OpJR:
			if in.Rs == decode.RegRA && offset-search >= 2 {
				return
			}
		}
	}
}

// patchHILOConsumer rewrites the lo16-half instruction once its base
// address is known: an addiu collapses to a move (or registers a function
// if the fused address lands in .text with a zero low offset), while
// load/store lo16 halves just get their offset zeroed since the fused
// base address is now carried on the li instead.
func patchHILOConsumer(ctx *recomp.Context, offset int, addr uint32) {
	insn := &ctx.Insns[offset]
	switch insn.Op {
	case decode.OpADDIU:
		insn.Patched = true
		insn.RewriteOp = decode.OpMOVE
		if addr >= ctx.TextVAddr && addr < ctx.TextVAddr+ctx.TextLen {
			ctx.AddFunction(addr)
		}

	case decode.OpLB, decode.OpLBU, decode.OpSB,
		decode.OpLH, decode.OpLHU, decode.OpSH,
		decode.OpLW, decode.OpSW,
		decode.OpLDC1, decode.OpLWC1, decode.OpSWC1:
		insn.Patched = true
		insn.PatchedAddr = 0

	default:
		ctx.Diags.Addf(insn.Addr, diag.KindUnrecognizedIdiom, "unsupported HI/LO consumer %s", insn.Op)
	}
}

// linkWithJALR searches backward from a `jalr $t9` for the instruction
// that last defined $t9: a resolved GOT-global load or LI becomes the
// call target directly, while an addiu chains through to whatever that
// addiu itself was linked to (the lo16 half of a %hi/%lo pair computing a
// function address locally rather than through the GOT).
//
// The original carries a second case here for a bare `ori $t9,...` chain
// identical to the addiu one, guarded out with "@bug repeated case" since
// it duplicates the ori arm above without ever being reachable — ori never
// sets linked_insn along this path, so the duplicate is preserved here as
// dead code rather than silently fixed:
//
//	case ori:
//	    if ctx.Insns[search].LinkedInsn != -1 { ... same as addiu ... }
func linkWithJALR(ctx *recomp.Context, offset int) {
	lookback := ctx.Diag.EffectiveLookback()
	end := offset - lookback
	if end < 0 {
		end = 0
	}

	for search := offset - 1; search >= end; search-- {
		in := &ctx.Insns[search]

		if in.DestReg() != decode.RegT9 {
			if in.Op == decode.OpJR && in.Rs == decode.RegRA {
				return
			}
			continue
		}

		switch in.Op {
		case decode.OpLW, decode.OpORI:
			if in.IsGlobalGOTMemop || in.Op == decode.OpORI {
				in.LinkedInsn = offset
				ctx.Insns[offset].LinkedInsn = search
				ctx.Insns[offset].LinkedValue = in.LinkedValue

				in.Patched = true
				in.RewriteOp = decode.OpNop
				in.IsGlobalGOTMemop = false

				ctx.AddFunction(in.LinkedValue)
			}
			return

		case decode.OpADDIU:
			if in.LinkedInsn != -1 {
				first := in.LinkedInsn
				in.LinkedInsn = offset
				ctx.Insns[offset].LinkedInsn = first
				ctx.Insns[offset].LinkedValue = in.LinkedValue
			}
			return

		case decode.OpADDU, decode.OpADD, decode.OpSUB, decode.OpSUBU:
			return

		default:
			continue
		}
	}
}
