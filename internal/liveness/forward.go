package liveness

import (
	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// runForward performs pass 4: propagate live-in register masks forward
// from the sparse seed set (main, and every address reachable through a
// data or li function pointer) along the CFG pass 3 built, with each
// call-shaped edge masked to the registers that actually survive it.
// Instructions no call reaches keep an empty mask — the signal the
// emitter later uses to elide unreachable functions.
func runForward(ctx *recomp.Context) {
	queue := make([]int, 0, len(ctx.Insns))
	queued := make([]bool, len(ctx.Insns))
	push := func(i int) {
		if !queued[i] {
			queued[i] = true
			queue = append(queue, i)
		}
	}

	seedForward(ctx, push)

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false

		insn := &ctx.Insns[i]
		live := Mask(insn.FLiveIn) | Alive

		if t := classify(insn.Inst); definesWithGuard(t) {
			if sourcesLive(t, insn.Inst, live) {
				live |= destMask(insn.Inst)
			}
		}

		if Mask(insn.FLiveOut) == live {
			continue
		}
		insn.FLiveOut = uint64(live)

		for _, e := range insn.Succs {
			contrib := edgeForwardContribution(ctx, i, e, live)
			succ := &ctx.Insns[e.I]
			merged := Mask(succ.FLiveIn) | contrib
			if merged != Mask(succ.FLiveIn) {
				succ.FLiveIn = uint64(merged)
				push(e.I)
			}
		}

		// The "skip edge" the spec calls out for function_entry: a call's
		// delay slot also forwards its own callee-saved locals straight
		// to the resume slot, bypassing the callee entirely, since pass 3
		// never materializes a real i+1->i+2 edge for an internal call.
		for _, e := range insn.Succs {
			if e.FunctionEntry {
				target := i + 1 // the call's delay slot is the current node; its resume slot is the next one
				if target < len(ctx.Insns) {
					succ := &ctx.Insns[target]
					contrib := live & calleeSavedMask()
					merged := Mask(succ.FLiveIn) | contrib
					if merged != Mask(succ.FLiveIn) {
						succ.FLiveIn = uint64(merged)
						push(target)
					}
				}
			}
		}
	}
}

func definesWithGuard(t Type) bool {
	switch t {
	case type1D, type1D1S, type1D2S, typeDLoHi2S:
		return true
	}
	return false
}

// sourcesLive reports whether every source register a defining
// instruction reads is already present in live — the "definedness
// guard" the spec calls out, which prunes a destination register from
// being marked live-out when it was computed from a dead-on-arrival
// value (e.g. a temp that's itself never forward-reachable).
func sourcesLive(t Type, in decode.Inst, live Mask) bool {
	switch t {
	case type1D:
		return true
	case type1D1S:
		return singleSourceMask(in)&live == singleSourceMask(in)
	case type1D2S, typeDLoHi2S:
		return allSourceMask(in)&live == allSourceMask(in)
	}
	return true
}

// edgeForwardContribution computes what a successor edge contributes to
// the target's f_livein, applying the edge-kind masks the spec spells
// out for pass 4; a plain edge passes the full live set through.
func edgeForwardContribution(ctx *recomp.Context, from int, e recomp.Edge, live Mask) Mask {
	switch {
	case e.FunctionEntry:
		return live & funcEntryForwardMask()
	case e.FunctionExit:
		return live & funcExitForwardMask()
	case e.ExternFunction:
		return externForwardContribution(ctx, from, live)
	case e.FunctionPtr:
		return (live &^ (callClobberMask() | hiBit | loBit)) | funcPtrForwardReturnMask() | Alive
	default:
		return live
	}
}

func externForwardContribution(ctx *recomp.Context, from int, live Mask) Mask {
	cleared := live &^ (callClobberMask() | hiBit | loBit)
	ext, ok := lookupExtern(ctx, from)
	if !ok {
		return cleared | funcPtrForwardReturnMask()
	}
	return cleared | externForwardReturnMask(ext.Return())
}

// seedForward marks main's entry and every function reachable via a
// data/li function pointer with their respective starting live sets.
func seedForward(ctx *recomp.Context, push func(int)) {
	if idx, err := ctx.AddrToIndex(ctx.MainAddr); err == nil && ctx.MainAddr != 0 {
		seedAt(ctx, idx, Alive|zeroBit|spBit|a0Bit|a1Bit, push)
	}
	for _, fp := range ctx.DataFunctionPointers {
		if idx, err := ctx.AddrToIndex(fp.Target); err == nil {
			seedAt(ctx, idx, Alive|zeroBit|spBit|a0Bit|a1Bit|a2Bit|a3Bit, push)
		}
	}
	for addr := range ctx.LIFunctionPointers {
		if idx, err := ctx.AddrToIndex(addr); err == nil {
			seedAt(ctx, idx, Alive|zeroBit|spBit|a0Bit|a1Bit|a2Bit|a3Bit, push)
		}
	}
}

func seedAt(ctx *recomp.Context, idx int, mask Mask, push func(int)) {
	insn := &ctx.Insns[idx]
	insn.FLiveIn = uint64(Mask(insn.FLiveIn) | mask)
	push(idx)
}
