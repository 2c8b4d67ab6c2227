// Package funcs finalizes the function table pass 1 built: it discovers
// every `jr $ra` return site belonging to each function, registers
// address-taken functions recovered through fused GOT-global loads, and
// synthesizes the two hand-written standard-library wrapper bodies the
// IDO toolchain inlines far enough that their own `jr $ra` never survives
// idiom recovery.
package funcs

import (
	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// Run performs pass 2 over ctx.Insns, mirroring r_pass2's two loops: the
// first records every jr $ra return site and every address-taken function
// recovered through a fused GOT-global load, the second walks the
// function table filling in end_addr and, for any function pass 1 never
// found a return for, either matches one of the two known wrapper shapes
// (synthesizing the instructions the real implementation was inlined out
// of) or reports the function as genuinely missing a return.
func Run(ctx *recomp.Context) error {
	if err := collectReturns(ctx); err != nil {
		return err
	}
	return finalizeFunctions(ctx)
}

// collectReturns mirrors r_pass2's first loop.
func collectReturns(ctx *recomp.Context) error {
	for i := range ctx.Insns {
		insn := &ctx.Insns[i]
		addr := ctx.IndexToAddr(i)

		if insn.Op == decode.OpJR && insn.Rs == decode.RegRA {
			fn := ctx.FindFunction(addr)
			if fn == nil {
				return diag.Fatalf(diag.KindMalformed, "0x%x: jr $ra outside any known function", addr)
			}
			fn.Returns = append(fn.Returns, addr+4)
		}

		if insn.IsGlobalGOTMemop {
			target := insn.PatchedAddr
			if target >= ctx.TextVAddr && target < ctx.TextVAddr+ctx.TextLen {
				ctx.LIFunctionPointers[target] = true
				ctx.AddFunction(target)
				ctx.Functions[target].ReferencedByFunctionPointer = true
			}
		}
	}
	return nil
}

// finalizeFunctions mirrors r_pass2's second loop: for every function
// with no recorded return, try the known wrapper shapes or accept the
// __start/leaf-jalr exemptions, then assign end_addr from the next
// function's entry (or the end of .text for the last one).
func finalizeFunctions(ctx *recomp.Context) error {
	order := ctx.FunctionsInOrder()

	for idx, fn := range order {
		if len(fn.Returns) == 0 {
			if err := resolveMissingReturn(ctx, fn); err != nil {
				return err
			}
		}

		if idx+1 < len(order) {
			fn.EndAddr = order[idx+1].Entry
		} else {
			fn.EndAddr = ctx.TextVAddr + ctx.TextLen
		}
	}
	return nil
}

// resolveMissingReturn mirrors the symbol-name switch in r_pass2: a
// function with no discovered jr $ra is either __start (which never
// returns by design), a leaf `lw $t9,off($gp); move $t7,$ra; jalr $t9`
// tail-call shim (the real return lives in whatever $t9 was loaded with),
// one of the two libc allocator wrappers the compiler inlines past the
// point idiom recovery can see their own return, or otherwise a genuine
// error when its entry lies past _mcount (one at or below it is tolerated).
func resolveMissingReturn(ctx *recomp.Context, fn *recomp.Function) error {
	name := ctx.SymbolNames[fn.Entry]

	switch name {
	case "__start":
		return nil

	case "xmalloc":
		return synthesizeXmalloc(ctx, fn)

	case "xfree":
		return synthesizeXfree(ctx, fn)
	}

	i, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return err
	}
	if isTailCallShim(ctx, i) {
		return nil
	}

	if fn.Entry > ctx.MCountAddr {
		return diag.Fatalf(diag.KindUnrecognizedIdiom, "0x%x: function has no return and matches no known wrapper shape", fn.Entry)
	}
	return nil
}

// isTailCallShim recognizes `lw $t9,off($gp); move $t7,$ra; jalr $t9` —
// a hand-written trampoline that tail-calls through $t9 instead of
// returning itself, so its caller's return address is whatever the
// jalr's target eventually returns to.
func isTailCallShim(ctx *recomp.Context, i int) bool {
	a, ok := insnAt(ctx, i)
	if !ok || a.Op != decode.OpLW {
		return false
	}
	b, ok := insnAt(ctx, i+1)
	if !ok || b.Op != decode.OpADDU || b.Rt != decode.RegZero {
		return false
	}
	c, ok := insnAt(ctx, i+2)
	if !ok || c.Op != decode.OpJALR {
		return false
	}
	return true
}

func insnAt(ctx *recomp.Context, i int) (*recomp.Insn, bool) {
	if i < 0 || i >= len(ctx.Insns) {
		return nil, false
	}
	return &ctx.Insns[i], true
}

// jrRA builds the synthesized `jr $ra` instruction r_pass2 writes via
// RabbitizerInstruction_init(..., 0x03E00008, ...) — raw encoding for
// jr $ra, kept literal here the way the original keeps it literal.
func jrRA(addr uint32) decode.Inst {
	return decode.Inst{Addr: addr, Raw: 0x03e00008, Op: decode.OpJR, Rs: decode.RegRA}
}

func nopInsn(addr uint32) decode.Inst {
	return decode.Inst{Addr: addr, Op: decode.OpNop}
}

// copyOpAt overwrites ctx.Insns[dst] wholesale with ctx.Insns[src],
// mirroring the original's whole-struct `rinsns[i] = rinsns[i+n]` copy —
// including whatever idiom recovery already fused onto src (RewriteOp,
// PatchedAddr, IsGlobalGOTMemop) — but keeps dst's own address so
// index-to-address bijectivity survives the wrapper-shape synthesis
// below, where the original carries the source instruction's own vram
// field along for the ride instead.
func copyOpAt(ctx *recomp.Context, dst, src int) {
	addr := ctx.Insns[dst].Addr
	ctx.Insns[dst] = ctx.Insns[src]
	ctx.Insns[dst].Addr = addr
}

func setSynthesized(ctx *recomp.Context, i int, in decode.Inst) {
	ctx.Insns[i] = recomp.Insn{Inst: in, LinkedInsn: -1, Patched: true}
}

// synthesizeXmalloc rewrites xmalloc's prologue into a direct call to
// alloc_new followed by the LI the caller's $a1 argument was set up with
// and a synthesized return, mirroring the two IDO-version shapes r_pass2
// hard-codes (see the doc comment on the instruction offsets below —
// these are positions relative to the function entry, not addresses, so
// they hold regardless of where in .text this particular binary placed
// xmalloc).
//
// IDO 5.3 (with the $gp-reestablishment preamble idiom recovery already
// collapsed to nop):
//
//	jal   alloc_new
//	lui   $a1,hi(malloc_scb)     ; copied forward from entry+4
//	jr    $ra
//	nop x4
//
// In the IDO 7.1 shape the LI lives 6 slots past the entry instead of 4;
// the two shapes are told apart by whether entry+6 is an ori/addiu.
func synthesizeXmalloc(ctx *recomp.Context, fn *recomp.Function) error {
	i, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return err
	}

	allocNewAddr := ctx.IndexToAddr(i + 7)
	if ctx.SymbolNames[allocNewAddr] != "alloc_new" {
		return diag.Fatalf(diag.KindUnrecognizedIdiom, "0x%x: xmalloc+7 is not alloc_new", allocNewAddr)
	}

	entryAddr := ctx.Insns[i].Addr
	setSynthesized(ctx, i, decode.Inst{Addr: entryAddr, Op: decode.OpJAL, Target: allocNewAddr})
	ctx.Insns[i].PatchedAddr = allocNewAddr
	i++

	liSrc, ok := insnAt(ctx, i+5)
	if ok && (liSrc.Op == decode.OpORI || liSrc.Op == decode.OpADDIU) {
		copyOpAt(ctx, i, i+5) // 7.1: li taken from entry+6
	} else {
		copyOpAt(ctx, i, i+3) // 5.3: li taken from entry+4
	}
	i++

	setSynthesized(ctx, i, jrRA(ctx.Insns[i].Addr))
	fn.Returns = append(fn.Returns, ctx.Insns[i].Addr+4)
	i++

	for j := 0; j < 4; j++ {
		if p, ok := insnAt(ctx, i); ok {
			setSynthesized(ctx, i, nopInsn(p.Addr))
		}
		i++
	}
	return nil
}

// synthesizeXfree mirrors synthesizeXmalloc for the matching deallocator
// wrapper, which only needs a jal to alloc_dispose, the argument-setup
// instruction copied forward two slots, a synthesized return, and one
// trailing nop.
func synthesizeXfree(ctx *recomp.Context, fn *recomp.Function) error {
	i, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return err
	}

	allocDisposeAddr := ctx.IndexToAddr(i + 4)
	if ctx.SymbolNames[allocDisposeAddr+4] == "alloc_dispose" {
		allocDisposeAddr += 4
	}
	if ctx.SymbolNames[allocDisposeAddr] != "alloc_dispose" {
		return diag.Fatalf(diag.KindUnrecognizedIdiom, "0x%x: xfree+4 is not alloc_dispose", allocDisposeAddr)
	}

	entryAddr := ctx.Insns[i].Addr
	setSynthesized(ctx, i, decode.Inst{Addr: entryAddr, Op: decode.OpJAL, Target: allocDisposeAddr})
	ctx.Insns[i].PatchedAddr = allocDisposeAddr
	i++

	copyOpAt(ctx, i, i+2)
	i++

	setSynthesized(ctx, i, jrRA(ctx.Insns[i].Addr))
	fn.Returns = append(fn.Returns, ctx.Insns[i].Addr+4)
	i++

	if p, ok := insnAt(ctx, i); ok {
		setSynthesized(ctx, i, nopInsn(p.Addr))
	}
	return nil
}
