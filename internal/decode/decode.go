// Package decode implements a MIPS-I/II instruction decoder for big-endian
// O32 executables. golang.org/x/arch has no MIPS support, so this decodes
// the fixed-width 32-bit encoding directly from the opcode/function fields,
// in the same bitmask style the rest of this codebase uses for branch and
// memory-operand recognition.
package decode

// Op identifies a decoded MIPS mnemonic. Only instructions this recompiler's
// idiom and liveness passes need to reason about are distinguished; the
// long tail of bit-identical-shape instructions (e.g. arithmetic/logic ops
// that differ only in which ALU operation they select) is kept as-is rather
// than unified, so later passes can print exact mnemonics.
type Op int

const (
	OpInvalid Op = iota
	OpNop
	OpLUI
	OpADDIU
	OpADDI
	OpORI
	OpANDI
	OpXORI
	OpSLTI
	OpSLTIU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpLB
	OpLBU
	OpLH
	OpLHU
	OpLW
	OpLWU
	OpSB
	OpSH
	OpSW
	OpLWR
	OpLWL
	OpSWR
	OpSWL
	OpLWC1
	OpSWC1
	OpLDC1
	OpSDC1
	OpMTC1
	OpMFC1
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpMFHI
	OpMFLO
	OpMTHI
	OpMTLO
	OpJ
	OpJAL
	OpJR
	OpJALR
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpBLTZ
	OpBGEZ
	OpBGEZAL
	OpBLTZAL
	OpBEQL
	OpBNEL
	OpBLEZL
	OpBGTZL
	OpBLTZL
	OpBGEZL
	OpBREAK
	OpSYSCALL
	OpUnknown

	// OpLI and OpMOVE are never produced by Decode. The idiom pass
	// assigns them to Insn.RewriteOp when it fuses a %hi/%lo or
	// GOT-relative pair into a single materialized address, the way the
	// original repurposes the real ori/addiu opcode fields for the same
	// purpose but flags the instruction for special-cased printing.
	OpLI
	OpMOVE
)

var opNames = map[Op]string{
	OpNop: "nop", OpLUI: "lui", OpADDIU: "addiu", OpADDI: "addi",
	OpORI: "ori", OpANDI: "andi", OpXORI: "xori", OpSLTI: "slti", OpSLTIU: "sltiu",
	OpADD: "add", OpADDU: "addu", OpSUB: "sub", OpSUBU: "subu",
	OpAND: "and", OpOR: "or", OpXOR: "xor", OpNOR: "nor",
	OpSLT: "slt", OpSLTU: "sltu",
	OpSLL: "sll", OpSRL: "srl", OpSRA: "sra",
	OpSLLV: "sllv", OpSRLV: "srlv", OpSRAV: "srav",
	OpLB: "lb", OpLBU: "lbu", OpLH: "lh", OpLHU: "lhu", OpLW: "lw", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpLWR: "lwr", OpLWL: "lwl", OpSWR: "swr", OpSWL: "swl",
	OpLWC1: "lwc1", OpSWC1: "swc1", OpLDC1: "ldc1", OpSDC1: "sdc1",
	OpMTC1: "mtc1", OpMFC1: "mfc1",
	OpMULT: "mult", OpMULTU: "multu", OpDIV: "div", OpDIVU: "divu",
	OpMFHI: "mfhi", OpMFLO: "mflo", OpMTHI: "mthi", OpMTLO: "mtlo",
	OpJ: "j", OpJAL: "jal", OpJR: "jr", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLEZ: "blez", OpBGTZ: "bgtz",
	OpBLTZ: "bltz", OpBGEZ: "bgez", OpBGEZAL: "bgezal", OpBLTZAL: "bltzal",
	OpBEQL: "beql", OpBNEL: "bnel", OpBLEZL: "blezl", OpBGTZL: "bgtzl",
	OpBLTZL: "bltzl", OpBGEZL: "bgezl",
	OpBREAK: "break", OpSYSCALL: "syscall", OpUnknown: "unknown",
	OpLI: "li", OpMOVE: "move",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "invalid"
}

// Inst is one decoded MIPS-I/II instruction.
type Inst struct {
	Addr uint32
	Raw  uint32
	Op   Op

	Rs, Rt, Rd byte
	Shamt      byte
	Imm        int32  // sign-extended 16-bit immediate
	Target     uint32 // absolute target for J/JAL (26-bit field << 2 | top 4 addr bits)

	// NoFollowingSuccessor marks the synthetic trailing NOP sentinel
	// appended after the last real instruction, so pass 3 never walks
	// past the end of .text looking for a delay slot.
	NoFollowingSuccessor bool
}

func opcodeField(w uint32) uint32  { return w >> 26 }
func rsField(w uint32) byte        { return byte((w >> 21) & 0x1f) }
func rtField(w uint32) byte        { return byte((w >> 16) & 0x1f) }
func rdField(w uint32) byte        { return byte((w >> 11) & 0x1f) }
func shamtField(w uint32) byte     { return byte((w >> 6) & 0x1f) }
func functField(w uint32) uint32   { return w & 0x3f }
func immField(w uint32) int32      { return int32(int16(uint16(w & 0xffff))) }
func uimmField(w uint32) uint32    { return w & 0xffff }
func targetField(w uint32) uint32  { return w & 0x03ffffff }

// Decode decodes one 32-bit big-endian MIPS instruction word at addr.
func Decode(addr, word uint32) Inst {
	in := Inst{Addr: addr, Raw: word}

	if word == 0 {
		in.Op = OpNop
		return in
	}

	op := opcodeField(word)
	switch op {
	case 0x00: // SPECIAL
		in.decodeSpecial(word)
	case 0x01: // REGIMM
		in.decodeRegimm(word)
	case 0x02:
		in.Op, in.Target = OpJ, absoluteTarget(addr, word)
	case 0x03:
		in.Op, in.Target = OpJAL, absoluteTarget(addr, word)
	case 0x04:
		in.Op, in.Rs, in.Rt, in.Imm = OpBEQ, rsField(word), rtField(word), immField(word)
	case 0x05:
		in.Op, in.Rs, in.Rt, in.Imm = OpBNE, rsField(word), rtField(word), immField(word)
	case 0x06:
		in.Op, in.Rs, in.Imm = OpBLEZ, rsField(word), immField(word)
	case 0x07:
		in.Op, in.Rs, in.Imm = OpBGTZ, rsField(word), immField(word)
	case 0x08:
		in.Op, in.Rs, in.Rt, in.Imm = OpADDI, rsField(word), rtField(word), immField(word)
	case 0x09:
		in.Op, in.Rs, in.Rt, in.Imm = OpADDIU, rsField(word), rtField(word), immField(word)
	case 0x0a:
		in.Op, in.Rs, in.Rt, in.Imm = OpSLTI, rsField(word), rtField(word), immField(word)
	case 0x0b:
		in.Op, in.Rs, in.Rt, in.Imm = OpSLTIU, rsField(word), rtField(word), immField(word)
	case 0x0c:
		in.Op, in.Rs, in.Rt, in.Imm = OpANDI, rsField(word), rtField(word), int32(uimmField(word))
	case 0x0d:
		in.Op, in.Rs, in.Rt, in.Imm = OpORI, rsField(word), rtField(word), int32(uimmField(word))
	case 0x0e:
		in.Op, in.Rs, in.Rt, in.Imm = OpXORI, rsField(word), rtField(word), int32(uimmField(word))
	case 0x0f:
		in.Op, in.Rt, in.Imm = OpLUI, rtField(word), int32(uimmField(word))
	case 0x11: // COP1
		in.decodeCop1(word)
	case 0x14:
		in.Op, in.Rs, in.Rt, in.Imm = OpBEQL, rsField(word), rtField(word), immField(word)
	case 0x15:
		in.Op, in.Rs, in.Rt, in.Imm = OpBNEL, rsField(word), rtField(word), immField(word)
	case 0x16:
		in.Op, in.Rs, in.Imm = OpBLEZL, rsField(word), immField(word)
	case 0x17:
		in.Op, in.Rs, in.Imm = OpBGTZL, rsField(word), immField(word)
	case 0x20:
		in.Op, in.Rs, in.Rt, in.Imm = OpLB, rsField(word), rtField(word), immField(word)
	case 0x21:
		in.Op, in.Rs, in.Rt, in.Imm = OpLH, rsField(word), rtField(word), immField(word)
	case 0x22:
		in.Op, in.Rs, in.Rt, in.Imm = OpLWL, rsField(word), rtField(word), immField(word)
	case 0x23:
		in.Op, in.Rs, in.Rt, in.Imm = OpLW, rsField(word), rtField(word), immField(word)
	case 0x24:
		in.Op, in.Rs, in.Rt, in.Imm = OpLBU, rsField(word), rtField(word), immField(word)
	case 0x25:
		in.Op, in.Rs, in.Rt, in.Imm = OpLHU, rsField(word), rtField(word), immField(word)
	case 0x26:
		in.Op, in.Rs, in.Rt, in.Imm = OpLWR, rsField(word), rtField(word), immField(word)
	case 0x28:
		in.Op, in.Rs, in.Rt, in.Imm = OpSB, rsField(word), rtField(word), immField(word)
	case 0x29:
		in.Op, in.Rs, in.Rt, in.Imm = OpSH, rsField(word), rtField(word), immField(word)
	case 0x2a:
		in.Op, in.Rs, in.Rt, in.Imm = OpSWL, rsField(word), rtField(word), immField(word)
	case 0x2b:
		in.Op, in.Rs, in.Rt, in.Imm = OpSW, rsField(word), rtField(word), immField(word)
	case 0x2e:
		in.Op, in.Rs, in.Rt, in.Imm = OpSWR, rsField(word), rtField(word), immField(word)
	case 0x31:
		in.Op, in.Rs, in.Rt, in.Imm = OpLWC1, rsField(word), rtField(word), immField(word)
	case 0x35:
		in.Op, in.Rs, in.Rt, in.Imm = OpLDC1, rsField(word), rtField(word), immField(word)
	case 0x39:
		in.Op, in.Rs, in.Rt, in.Imm = OpSWC1, rsField(word), rtField(word), immField(word)
	case 0x3d:
		in.Op, in.Rs, in.Rt, in.Imm = OpSDC1, rsField(word), rtField(word), immField(word)
	default:
		in.Op = OpUnknown
	}
	return in
}

func absoluteTarget(addr, word uint32) uint32 {
	return (addr &^ 0x0fffffff) | (targetField(word) << 2)
}

func (in *Inst) decodeSpecial(word uint32) {
	rs, rt, rd, sh := rsField(word), rtField(word), rdField(word), shamtField(word)
	switch functField(word) {
	case 0x00:
		if word == 0 {
			in.Op = OpNop
		} else {
			in.Op, in.Rd, in.Rt, in.Shamt = OpSLL, rd, rt, sh
		}
	case 0x02:
		in.Op, in.Rd, in.Rt, in.Shamt = OpSRL, rd, rt, sh
	case 0x03:
		in.Op, in.Rd, in.Rt, in.Shamt = OpSRA, rd, rt, sh
	case 0x04:
		in.Op, in.Rd, in.Rt, in.Rs = OpSLLV, rd, rt, rs
	case 0x06:
		in.Op, in.Rd, in.Rt, in.Rs = OpSRLV, rd, rt, rs
	case 0x07:
		in.Op, in.Rd, in.Rt, in.Rs = OpSRAV, rd, rt, rs
	case 0x08:
		in.Op, in.Rs = OpJR, rs
	case 0x09:
		in.Op, in.Rs, in.Rd = OpJALR, rs, rd
	case 0x0c:
		in.Op = OpSYSCALL
	case 0x0d:
		in.Op = OpBREAK
	case 0x10:
		in.Op, in.Rd = OpMFHI, rd
	case 0x11:
		in.Op, in.Rs = OpMTHI, rs
	case 0x12:
		in.Op, in.Rd = OpMFLO, rd
	case 0x13:
		in.Op, in.Rs = OpMTLO, rs
	case 0x18:
		in.Op, in.Rs, in.Rt = OpMULT, rs, rt
	case 0x19:
		in.Op, in.Rs, in.Rt = OpMULTU, rs, rt
	case 0x1a:
		in.Op, in.Rs, in.Rt = OpDIV, rs, rt
	case 0x1b:
		in.Op, in.Rs, in.Rt = OpDIVU, rs, rt
	case 0x20:
		in.Op, in.Rd, in.Rs, in.Rt = OpADD, rd, rs, rt
	case 0x21:
		in.Op, in.Rd, in.Rs, in.Rt = OpADDU, rd, rs, rt
	case 0x22:
		in.Op, in.Rd, in.Rs, in.Rt = OpSUB, rd, rs, rt
	case 0x23:
		in.Op, in.Rd, in.Rs, in.Rt = OpSUBU, rd, rs, rt
	case 0x24:
		in.Op, in.Rd, in.Rs, in.Rt = OpAND, rd, rs, rt
	case 0x25:
		in.Op, in.Rd, in.Rs, in.Rt = OpOR, rd, rs, rt
	case 0x26:
		in.Op, in.Rd, in.Rs, in.Rt = OpXOR, rd, rs, rt
	case 0x27:
		in.Op, in.Rd, in.Rs, in.Rt = OpNOR, rd, rs, rt
	case 0x2a:
		in.Op, in.Rd, in.Rs, in.Rt = OpSLT, rd, rs, rt
	case 0x2b:
		in.Op, in.Rd, in.Rs, in.Rt = OpSLTU, rd, rs, rt
	default:
		in.Op = OpUnknown
	}
}

func (in *Inst) decodeRegimm(word uint32) {
	rs, imm := rsField(word), immField(word)
	switch rtField(word) {
	case 0x00:
		in.Op, in.Rs, in.Imm = OpBLTZ, rs, imm
	case 0x01:
		in.Op, in.Rs, in.Imm = OpBGEZ, rs, imm
	case 0x02:
		in.Op, in.Rs, in.Imm = OpBLTZL, rs, imm
	case 0x03:
		in.Op, in.Rs, in.Imm = OpBGEZL, rs, imm
	case 0x10:
		in.Op, in.Rs, in.Imm = OpBLTZAL, rs, imm
	case 0x11:
		in.Op, in.Rs, in.Imm = OpBGEZAL, rs, imm
	default:
		in.Op = OpUnknown
	}
}

func (in *Inst) decodeCop1(word uint32) {
	rt, rd := rtField(word), rdField(word)
	switch (word >> 21) & 0x1f {
	case 0x00:
		in.Op, in.Rt, in.Rd = OpMFC1, rt, rd
	case 0x04:
		in.Op, in.Rt, in.Rd = OpMTC1, rt, rd
	default:
		in.Op = OpUnknown
	}
}

// HasDelaySlot reports whether op is followed by an architectural delay
// slot — every MIPS-I/II branch and jump, unconditionally.
func (o Op) HasDelaySlot() bool {
	switch o {
	case OpJ, OpJAL, OpJR, OpJALR,
		OpBEQ, OpBNE, OpBLEZ, OpBGTZ, OpBLTZ, OpBGEZ, OpBGEZAL, OpBLTZAL,
		OpBEQL, OpBNEL, OpBLEZL, OpBGTZL, OpBLTZL, OpBGEZL:
		return true
	}
	return false
}

// IsLikelyBranch reports whether a not-taken branch nullifies (does not
// execute) its delay slot — the "*L" branch family.
func (o Op) IsLikelyBranch() bool {
	switch o {
	case OpBEQL, OpBNEL, OpBLEZL, OpBGTZL, OpBLTZL, OpBGEZL:
		return true
	}
	return false
}

// IsUnconditionalJump reports whether op always transfers control (J, JAL,
// JR, JALR) as opposed to a conditional branch.
func (o Op) IsUnconditionalJump() bool {
	switch o {
	case OpJ, OpJAL, OpJR, OpJALR:
		return true
	}
	return false
}
