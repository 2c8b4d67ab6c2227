package liveness

import "recomp/internal/recomp"

// inferSignatures performs pass 6: for each function, intersect forward
// and backward liveness at its entry instruction and at each of its
// return sites to derive nargs, nret, and v0_in.
func inferSignatures(ctx *recomp.Context) error {
	for _, fn := range ctx.Functions {
		entryIdx, err := ctx.AddrToIndex(fn.Entry)
		if err != nil {
			return err
		}
		entry := ctx.Insns[entryIdx]
		entryLive := Mask(entry.FLiveIn) & Mask(entry.BLiveIn)

		fn.NArgs = 0
		for i := 3; i >= 0; i-- {
			if entryLive&argBit(i) != 0 {
				fn.NArgs = uint32(i + 1)
				break
			}
		}

		fn.V0In = entryLive&v0Bit != 0 && !fn.ReferencedByFunctionPointer

		fn.NRet = 0
		for _, ret := range fn.Returns {
			idx, err := ctx.AddrToIndex(ret)
			if err != nil {
				return err
			}
			insn := ctx.Insns[idx]
			live := Mask(insn.FLiveOut) & Mask(insn.BLiveOut)
			n := uint32(0)
			switch {
			case live&v0Bit != 0 && live&v1Bit != 0:
				n = 2
			case live&v0Bit != 0:
				n = 1
			}
			if n > fn.NRet {
				fn.NRet = n
			}
		}
	}
	return nil
}
