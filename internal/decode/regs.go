package decode

// O32 general-purpose register numbers, named the way every pass that
// inspects Inst.Rs/Rt/Rd/IndexReg refers to them.
const (
	RegZero byte = 0
	RegAt   byte = 1
	RegV0   byte = 2
	RegV1   byte = 3
	RegA0   byte = 4
	RegA1   byte = 5
	RegA2   byte = 6
	RegA3   byte = 7
	RegT0   byte = 8
	RegT1   byte = 9
	RegT2   byte = 10
	RegT3   byte = 11
	RegT4   byte = 12
	RegT5   byte = 13
	RegT6   byte = 14
	RegT7   byte = 15
	RegS0   byte = 16
	RegS1   byte = 17
	RegS2   byte = 18
	RegS3   byte = 19
	RegS4   byte = 20
	RegS5   byte = 21
	RegS6   byte = 22
	RegS7   byte = 23
	RegT8   byte = 24
	RegT9   byte = 25
	RegK0   byte = 26
	RegK1   byte = 27
	RegGP   byte = 28
	RegSP   byte = 29
	RegFP   byte = 30
	RegRA   byte = 31
)

var regNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// RegName renders a register number the way the emitter prints operands.
func RegName(r byte) string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return "?"
}

// ModifiesRt reports whether op writes its Rt field (I-type ALU/load ops,
// COP1 moves) as opposed to Rd (R-type ALU) — the Go equivalent of
// RabbitizerInstrDescriptor_modifiesRt, used to find an instruction's
// destination register without a second switch at every call site.
func (o Op) ModifiesRt() bool {
	switch o {
	case OpADDIU, OpADDI, OpORI, OpANDI, OpXORI, OpSLTI, OpSLTIU, OpLUI,
		OpLB, OpLBU, OpLH, OpLHU, OpLW, OpLWU, OpLWL, OpLWR, OpMFC1:
		return true
	}
	return false
}

// ModifiesRd reports whether op writes its Rd field.
func (o Op) ModifiesRd() bool {
	switch o {
	case OpADD, OpADDU, OpSUB, OpSUBU, OpAND, OpOR, OpXOR, OpNOR, OpSLT, OpSLTU,
		OpSLL, OpSRL, OpSRA, OpSLLV, OpSRLV, OpSRAV, OpJALR, OpMFHI, OpMFLO:
		return true
	}
	return false
}

// DestReg returns the register an instruction writes, or RegZero if it
// writes none — get_dest_reg's fallback, which the original notes is
// "okay" because nothing downstream treats $zero as a real destination.
func (in Inst) DestReg() byte {
	if in.Op.ModifiesRt() {
		return in.Rt
	}
	if in.Op.ModifiesRd() {
		return in.Rd
	}
	return RegZero
}
