// Package cfg builds the control-flow graph pass 4 (liveness) rides on:
// one edge-emission sweep over every decoded instruction that models each
// branch/jump as two edges — the fall-through into the delay slot, and the
// delay slot onward to the real target — so that downstream passes always
// see the delay slot as unconditionally executed, never inlined into the
// branch that owns it.
package cfg

import (
	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// Run performs pass 3 over ctx.Insns, mirroring r_pass3's per-instruction
// switch on opcode shape. Every function must already have its Returns
// list populated (pass 2 / internal/funcs.Run) since jal edges to an
// internal callee need them to wire the function_exit edges back to the
// call site's resume slot.
func Run(ctx *recomp.Context) error {
	for i := range ctx.Insns {
		insn := &ctx.Insns[i]
		if insn.NoFollowingSuccessor {
			continue
		}
		if err := addEdgesFor(ctx, i, insn); err != nil {
			return err
		}
	}
	return nil
}

// addEdge records from→to on both endpoints. An edge whose target lies past
// the last instruction is not added.
func addEdge(ctx *recomp.Context, from, to int, kind recomp.Edge) {
	if to >= len(ctx.Insns) {
		return
	}
	fe, be := kind, kind
	fe.I, be.I = to, from
	ctx.Insns[from].Succs = append(ctx.Insns[from].Succs, fe)
	ctx.Insns[to].Preds = append(ctx.Insns[to].Preds, be)
}

func isConditionalBranch(op decode.Op) bool {
	switch op {
	case decode.OpBEQ, decode.OpBNE, decode.OpBLEZ, decode.OpBGTZ, decode.OpBLTZ, decode.OpBGEZ:
		return true
	}
	return false
}

func isLikelyBranch(op decode.Op) bool {
	switch op {
	case decode.OpBEQL, decode.OpBNEL, decode.OpBLEZL, decode.OpBGTZL, decode.OpBLTZL, decode.OpBGEZL:
		return true
	}
	return false
}

// branchTarget resolves a branch/jump's effective target: a patched
// address overrides the raw encoding, exactly as the original's
// `insn.patched ? insn.patched_addr : ...` ternary does at every jump site.
func branchTarget(insn *recomp.Insn) uint32 {
	if insn.Patched {
		return insn.PatchedAddr
	}
	if insn.Op == decode.OpJ || insn.Op == decode.OpJAL {
		return insn.Target
	}
	return uint32(int32(insn.Addr) + 4 + insn.Imm*4)
}

func addEdgesFor(ctx *recomp.Context, i int, insn *recomp.Insn) error {
	switch {
	case isConditionalBranch(insn.Op):
		addEdge(ctx, i, i+1, recomp.Edge{})
		target, err := ctx.AddrToIndex(branchTarget(insn))
		if err != nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: branch target out of range: %v", insn.Addr, err)
		}
		addEdge(ctx, i+1, target, recomp.Edge{})

	case isLikelyBranch(insn.Op):
		addEdge(ctx, i, i+1, recomp.Edge{})
		addEdge(ctx, i, i+2, recomp.Edge{})
		target, err := ctx.AddrToIndex(branchTarget(insn))
		if err != nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: branch target out of range: %v", insn.Addr, err)
		}
		addEdge(ctx, i+1, target, recomp.Edge{})
		ctx.Insns[i+1].NoFollowingSuccessor = true

	case insn.Op == decode.OpJ:
		addEdge(ctx, i, i+1, recomp.Edge{})
		target, err := ctx.AddrToIndex(branchTarget(insn))
		if err != nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: jump target out of range: %v", insn.Addr, err)
		}
		addEdge(ctx, i+1, target, recomp.Edge{})
		ctx.Insns[i+1].NoFollowingSuccessor = true

	case insn.Op == decode.OpJR:
		return addJRTableEdges(ctx, i, insn)

	case insn.Op == decode.OpJAL:
		return addJALEdges(ctx, i, insn)

	case insn.Op == decode.OpJALR:
		addEdge(ctx, i, i+1, recomp.Edge{})
		addEdge(ctx, i+1, i+2, recomp.Edge{FunctionPtr: true})
		ctx.Insns[i+1].NoFollowingSuccessor = true

	default:
		addEdge(ctx, i, i+1, recomp.Edge{})
	}
	return nil
}

// addJRTableEdges handles `jr`: a plain `jr $ra` just falls into its delay
// slot and terminates (the return edge back to each caller is added from
// the jal side, at the call site, once the callee's Returns are known); a
// `jr` realizing a recognized jump table fans the delay slot out to every
// case target recovered by idiom.Run.
func addJRTableEdges(ctx *recomp.Context, i int, insn *recomp.Insn) error {
	addEdge(ctx, i, i+1, recomp.Edge{})

	if insn.JumpTableAddr == 0 {
		if insn.Rs != decode.RegRA {
			return diag.Fatalf(diag.KindUnrecognizedIdiom, "0x%x: jr to register other than $ra with no recovered jump table", insn.Addr)
		}
		ctx.Insns[i+1].NoFollowingSuccessor = true
		return nil
	}

	roStart := uint32(ctx.RoData.VAddr)
	roEnd := roStart + uint32(len(ctx.RoData.Bytes))
	if insn.JumpTableAddr < roStart || insn.JumpTableAddr+insn.NumCases*4 > roEnd {
		return diag.Fatalf(diag.KindMalformed, "0x%x: jump table [0x%x,+%d) outside .rodata", insn.Addr, insn.JumpTableAddr, insn.NumCases*4)
	}

	off := insn.JumpTableAddr - roStart
	for c := uint32(0); c < insn.NumCases; c++ {
		word := be32(ctx.RoData.Bytes, int(off+c*4))
		dest := word + ctx.GPValue
		target, err := ctx.AddrToIndex(dest)
		if err != nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: jump-table case %d target 0x%x out of range: %v", insn.Addr, c, dest, err)
		}
		addEdge(ctx, i+1, target, recomp.Edge{})
	}
	ctx.Insns[i+1].NoFollowingSuccessor = true
	return nil
}

// addJALEdges wires a call: internal calls get a function_entry edge into
// the callee plus one function_exit edge per callee return back to the
// slot after the delay slot, externs/out-of-range targets get a single
// extern_function edge spanning the delay slot.
func addJALEdges(ctx *recomp.Context, i int, insn *recomp.Insn) error {
	addEdge(ctx, i, i+1, recomp.Edge{})

	dest := branchTarget(insn)

	if dest > ctx.MCountAddr && dest >= ctx.TextVAddr && dest < ctx.TextVAddr+ctx.TextLen {
		target, err := ctx.AddrToIndex(dest)
		if err != nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: call target out of range: %v", insn.Addr, err)
		}
		addEdge(ctx, i+1, target, recomp.Edge{FunctionEntry: true})

		fn := ctx.Functions[dest]
		if fn == nil {
			return diag.Fatalf(diag.KindMalformed, "0x%x: call target 0x%x is not a known function", insn.Addr, dest)
		}
		for _, ret := range fn.Returns {
			retIdx, err := ctx.AddrToIndex(ret)
			if err != nil {
				return diag.Fatalf(diag.KindMalformed, "0x%x: return site out of range: %v", ret, err)
			}
			addEdge(ctx, retIdx, i+2, recomp.Edge{FunctionExit: true})
		}
	} else {
		addEdge(ctx, i+1, i+2, recomp.Edge{ExternFunction: true})
	}

	ctx.Insns[i+1].NoFollowingSuccessor = true
	return nil
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}
