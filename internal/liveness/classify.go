package liveness

import "recomp/internal/decode"

// Type buckets an instruction by how many GPR/HI/LO operands it reads and
// writes, mirroring r_insn_to_type. Only the buckets pass4/pass5 actually
// switch on are named; everything else (floating-point ALU ops, mthi/mtlo,
// syscall/break, and the decoder's own nop) is typeNOP and carries no
// liveness contribution of its own.
type Type int

const (
	typeNOP Type = iota
	type1S       // one GPR source, no destination (plain conditional branches, trap ops)
	type1SPos1   // one GPR source read from the FP-load base register slot
	type2S       // two GPR sources, no destination (beq/bne/stores/traps)
	type1D       // one GPR destination, no GPR source (lui, mfc1)
	type1D1S     // one destination, one source (loads, shifts, mfhi/mflo, addiu-family)
	type1D2S     // one destination, two sources (and/or/nor/slt/sub family)
	typeDLoHi2S  // HI and LO destination, two GPR sources (mult/div family)
)

func classify(in decode.Inst) Type {
	switch in.Op {
	case decode.OpADD, decode.OpADDU, decode.OpADDI, decode.OpADDIU,
		decode.OpANDI, decode.OpORI, decode.OpXORI,
		decode.OpLB, decode.OpLBU, decode.OpLH, decode.OpLHU, decode.OpLW, decode.OpLWU, decode.OpLWL,
		decode.OpSLL, decode.OpSLTI, decode.OpSLTIU, decode.OpSRA, decode.OpSRL,
		decode.OpMFHI, decode.OpMFLO:
		return type1D1S

	case decode.OpAND, decode.OpOR, decode.OpNOR, decode.OpSLLV, decode.OpSLT, decode.OpSLTU,
		decode.OpSRAV, decode.OpSRLV, decode.OpSUBU, decode.OpXOR, decode.OpSUB:
		return type1D2S

	case decode.OpLUI, decode.OpMFC1:
		return type1D

	case decode.OpMTC1, decode.OpBGEZ, decode.OpBGEZL, decode.OpBGTZ, decode.OpBGTZL,
		decode.OpBLEZ, decode.OpBLEZL, decode.OpBLTZ, decode.OpBLTZL:
		return type1S

	case decode.OpLWC1, decode.OpLDC1, decode.OpSWC1, decode.OpSDC1:
		return type1SPos1

	case decode.OpBEQ, decode.OpBEQL, decode.OpBNE, decode.OpBNEL,
		decode.OpSB, decode.OpSH, decode.OpSW, decode.OpSWL:
		return type2S

	case decode.OpMULT, decode.OpMULTU, decode.OpDIV, decode.OpDIVU:
		return typeDLoHi2S

	case decode.OpJALR:
		return type1S

	case decode.OpJR:
		if in.Rs == decode.RegRA {
			return typeNOP
		}
		return type1S
	}
	return typeNOP
}

// destMask returns the bit an instruction of a def-bearing type writes.
// mfhi/mflo are the one case get_dest_reg's generic "DestReg or $zero"
// rule can't express: their destination is a GPR (Rd) but their source is
// the HI/LO pair, not a GPR, so the source side is special-cased in
// singleSourceMask instead.
func destMask(in decode.Inst) Mask {
	switch classify(in) {
	case typeDLoHi2S:
		return hiBit | loBit
	case type1D, type1D1S, type1D2S:
		return regBit(in.DestReg())
	}
	return 0
}

// singleSourceMask returns the one-register contribution of a type1S,
// type1SPos1, or type1D1S instruction. mfhi/mflo read HI/LO rather than a
// GPR; sll/srl/sra shift $rt by an immediate and carry no rs operand at
// all (the decoder never populates Rs for them); every other member of
// these buckets reads Rs (the original's hasOperandAlias(rs)-first rule,
// which is why plain 3-register ops like add/addu that classify as
// type1D1S still only contribute their rs side).
func singleSourceMask(in decode.Inst) Mask {
	switch in.Op {
	case decode.OpMFHI:
		return hiBit
	case decode.OpMFLO:
		return loBit
	case decode.OpMTC1, decode.OpSLL, decode.OpSRL, decode.OpSRA:
		// mtc1 moves $rt into an FP register; sll/srl/sra shift $rt by an
		// immediate shamt. Neither has an rs operand.
		return regBit(in.Rt)
	}
	return regBit(in.Rs)
}

// allSourceMask returns both register contributions of a type2S or
// type1D2S instruction (Rs and Rt).
func allSourceMask(in decode.Inst) Mask {
	return regBit(in.Rs) | regBit(in.Rt)
}
