package liveness

import (
	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// runBackward performs pass 5: propagate live-out register masks
// backward from every function's return sites (seeded with $v0 always,
// $v1 too when the function is reachable through a function pointer),
// mirroring pass 4's edge-kind handling in the opposite direction. A
// call site's live-in is augmented with whatever argument set the
// callee — internal or extern — actually consumes, which is why this
// runs as one whole-graph fixpoint rather than per function: an
// internal callee's own b_livein must already be settled, and the
// worklist naturally converges to that regardless of call order.
//
// Besides the return sites, every instruction pass 4 already marked
// reachable is queued too (rrecomp.cpp:1638-1643): a noreturn function's
// body, or an infinite loop, is never a transitive predecessor of any
// seeded return site, so without this a pull-model fixpoint never visits
// it and its source-register uses never reach its predecessors. This is
// why runBackward must run after runForward has fully settled rather
// than concurrently with it.
func runBackward(ctx *recomp.Context) {
	n := len(ctx.Insns)
	seedOut := make([]Mask, n)
	seedReturnSites(ctx, seedOut)

	queue := make([]int, 0, n)
	queued := make([]bool, n)
	push := func(i int) {
		if !queued[i] {
			queued[i] = true
			queue = append(queue, i)
		}
	}
	for i := range seedOut {
		if seedOut[i] != 0 {
			push(i)
		}
	}
	for i := range ctx.Insns {
		if ctx.Insns[i].FLiveIn != 0 {
			push(i)
		}
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false

		insn := &ctx.Insns[i]
		out := seedOut[i]
		for _, e := range insn.Succs {
			out |= edgeBackwardContribution(ctx, i, e, Mask(ctx.Insns[e.I].BLiveIn))
		}
		out |= Alive

		t := classify(insn.Inst)
		dest := destMask(insn.Inst)
		live := out &^ dest
		if dest == 0 || out&dest != 0 {
			// No destination (type1S/type1SPos1/type2S) always contributes
			// its source; a def-bearing type only does when its def is
			// actually live in live-out — a dead def (e.g. an addiu whose
			// result is never read) must not resurrect its source register.
			live |= genMask(t, insn.Inst)
		}
		in := live | Alive

		changed := Mask(insn.BLiveOut) != out || Mask(insn.BLiveIn) != in
		insn.BLiveOut = uint64(out)
		insn.BLiveIn = uint64(in)
		if !changed {
			continue
		}
		for _, e := range insn.Preds {
			push(e.I)
		}
	}
}

// genMask returns the register "use" contribution of an instruction's
// type: the dual of destMask, covering the source-only and mixed
// def/source buckets alike (a type1D1S instruction's single source is a
// genuine use for backward liveness even though it's also a def type).
func genMask(t Type, in decode.Inst) Mask {
	switch t {
	case type1S, type1SPos1, type1D1S:
		return singleSourceMask(in)
	case type2S, type1D2S, typeDLoHi2S:
		return allSourceMask(in)
	}
	return 0
}

func seedReturnSites(ctx *recomp.Context, seedOut []Mask) {
	for _, fn := range ctx.Functions {
		for _, ret := range fn.Returns {
			idx, err := ctx.AddrToIndex(ret)
			if err != nil {
				continue
			}
			m := Alive | v0Bit
			if fn.ReferencedByFunctionPointer {
				m |= v1Bit
			}
			seedOut[idx] |= m
		}
	}
}

// edgeBackwardContribution computes what a successor's b_livein
// contributes back to this instruction's b_liveout, applying the
// edge-kind masks symmetric to pass 4's, plus the call-site argument
// augmentation the spec describes for pass 5.
func edgeBackwardContribution(ctx *recomp.Context, from int, e recomp.Edge, succBLiveIn Mask) Mask {
	switch {
	case e.FunctionEntry:
		return succBLiveIn & funcEntryBackwardMask()
	case e.FunctionExit:
		return succBLiveIn & funcExitBackwardMask()
	case e.ExternFunction:
		base := succBLiveIn & calleeSavedMask()
		if ext, ok := lookupExtern(ctx, from); ok {
			return base | externArgUseMask(ext)
		}
		return base | funcPtrUseMask()
	case e.FunctionPtr:
		return (succBLiveIn & calleeSavedMask()) | funcPtrUseMask()
	default:
		return succBLiveIn
	}
}
