package idiom

import (
	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func insnAt(ctx *recomp.Context, i int) (*recomp.Insn, bool) {
	if i < 0 || i >= len(ctx.Insns) {
		return nil, false
	}
	return &ctx.Insns[i], true
}

func isBEQZ(in *recomp.Insn) bool {
	return in.Op == decode.OpBEQ && in.Rt == decode.RegZero
}

// rsRawField reads the raw rs bitfield of a word regardless of how it was
// decoded — needed for the addu_index-1 instruction below, which the
// original reads as an rs operand before it has even confirmed that
// instruction is an sll (whose rs field is otherwise unused).
func rsRawField(in *recomp.Insn) byte {
	return byte((in.Raw >> 21) & 0x1f)
}

// recognizeJumpTable matches a `jr` against the instruction-shape two IDO
// compiler versions emit for a switch dispatched through a jump table in
// .rodata, recovering the table's base address, case count, and index
// register, then NOPs out the table-address computation (now folded into
// insn.JumpTableAddr/NumCases/IndexReg) and registers every case target as
// a label. Two table sizes this heuristic structurally cannot recover
// (the initial sltiu/andi bound lives in a different basic block) are
// pulled from ctx.JumpTableOverrides instead of hard-coded, as is the one
// site whose sltiu search window is widened from 14 to 18 instructions.
// In ModeStrict a jr that matches no shape is a fatal error; otherwise it
// is recorded as a diagnostic and left unresolved.
//
// IDO 7.1 shape:
//
//	lw      at,offset(gp)
//	andi    t9,t8,0x3f
//	sll     t9,t9,0x2
//	addu    at,at,t9
//	lw      t9,offset(at)
//	addu    t9,t9,gp
//	jr      t9
//
// IDO 5.3 shape adds a nop before the final addu (has_nop) and, for PIC
// binaries, an addu against $gp right before the jr itself (is_pic).
func recognizeJumpTable(ctx *recomp.Context, i int) error {
	insn := &ctx.Insns[i]
	if i < 6 || len(ctx.RoData.Bytes) == 0 {
		return nil
	}

	prev, ok := insnAt(ctx, i-1)
	if !ok {
		return nil
	}
	isPIC := (prev.Op == decode.OpADD || prev.Op == decode.OpADDU) && prev.Rt == decode.RegGP

	nopProbe, ok := insnAt(ctx, i-btoi(isPIC)-1)
	if !ok {
		return nil
	}
	hasNop := nopProbe.Op == decode.OpNop

	extraProbe, ok := insnAt(ctx, i-btoi(isPIC)-btoi(hasNop)-5)
	hasExtra := !ok || !isBEQZ(extraProbe)

	lw := i - btoi(isPIC) - btoi(hasNop) - 1
	lwInsn, ok := insnAt(ctx, lw)
	if !ok {
		return nil
	}
	if lwInsn.Op != decode.OpLW {
		lw--
		lwInsn, ok = insnAt(ctx, lw)
		if !ok {
			return nil
		}
	}
	if lwInsn.Op != decode.OpLW || lwInsn.LinkedInsn == -1 {
		return nil
	}

	aduIndex := lw - 1
	aduInsn, ok := insnAt(ctx, aduIndex)
	if !ok {
		return nil
	}
	if aduInsn.Op != decode.OpADD && aduInsn.Op != decode.OpADDU {
		aduIndex--
		aduInsn, ok = insnAt(ctx, aduIndex)
		if !ok {
			return nil
		}
	}

	sllProbe, ok := insnAt(ctx, aduIndex-1)
	if !ok {
		return nil
	}
	indexReg := rsRawField(sllProbe)

	if aduInsn.Op != decode.OpADD && aduInsn.Op != decode.OpADDU {
		return nil
	}
	if sllProbe.Op != decode.OpSLL {
		return nil
	}
	if sllProbe.DestReg() != insn.Rs {
		return nil
	}

	andiIndex := -1
	for j := 3; j <= 4; j++ {
		if p, ok := insnAt(ctx, lw-j); ok && p.Op == decode.OpANDI {
			andiIndex = lw - j
			break
		}
	}

	end := 14
	if v, ok := ctx.JumpTableOverrides[i]; ok && v == recomp.JumpTableEndOverride {
		end = 18
	}

	sltiuIndex := -1
	for j := 5; j <= end; j++ {
		p, ok := insnAt(ctx, lw-btoi(hasExtra)-j)
		if !ok {
			break
		}
		if p.Op == decode.OpSLTIU && p.Rt == decode.RegAt {
			sltiuIndex = j
			break
		}
		if p.Op == decode.OpJR {
			break
		}
	}
	if sltiuIndex != -1 {
		andiIndex = -1
	}

	var (
		found     bool
		andVariant bool
		numCases  uint32
	)
	switch {
	case sltiuIndex != -1:
		if p, ok := insnAt(ctx, lw-btoi(hasExtra)-sltiuIndex); ok && p.Op == decode.OpSLTIU {
			numCases = uint32(p.Imm)
			found = true
		}
	case andiIndex != -1:
		numCases = uint32(ctx.Insns[andiIndex].Imm) + 1
		found = true
		andVariant = true
	default:
		if v, ok := ctx.JumpTableOverrides[i]; ok && v != recomp.JumpTableEndOverride {
			numCases = v
			found = true
		}
	}
	if !found {
		if ctx.Diag.Mode == diag.ModeStrict {
			return diag.Fatalf(diag.KindHeuristicMiss, "0x%x: jr dispatch did not match a recognized jump-table shape", insn.Addr)
		}
		ctx.Diags.Addf(insn.Addr, diag.KindHeuristicMiss, "jr dispatch did not match a recognized jump-table shape")
		return nil
	}

	jtblAddr := lwInsn.LinkedValue

	if isPIC {
		prev.Patched = true
		prev.RewriteOp = decode.OpNop
	}

	insn.JumpTableAddr = jtblAddr
	insn.NumCases = numCases
	insn.IndexReg = indexReg

	lwInsn.Patched = true
	lwInsn.RewriteOp = decode.OpNop
	aduInsn.Patched = true
	aduInsn.RewriteOp = decode.OpNop
	sllProbe.Patched = true
	sllProbe.RewriteOp = decode.OpNop
	if !andVariant {
		if p, ok := insnAt(ctx, aduIndex-2); ok {
			p.Patched = true
			p.RewriteOp = decode.OpNop
		}
	}

	roStart := uint32(ctx.RoData.VAddr)
	roEnd := roStart + uint32(len(ctx.RoData.Bytes))
	if jtblAddr < roStart || jtblAddr+numCases*4 > roEnd {
		return diag.Fatalf(diag.KindMalformed, "jump table at 0x%x (%d cases) outside .rodata", jtblAddr, numCases)
	}

	for c := uint32(0); c < numCases; c++ {
		off := jtblAddr - roStart + c*4
		target := be32(ctx.RoData.Bytes, int(off)) + ctx.GPValue
		ctx.LabelAddresses[target] = true
	}
	return nil
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}
