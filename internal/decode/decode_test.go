package decode

import "testing"

func TestDecodeNop(t *testing.T) {
	in := Decode(0x1000, 0x00000000)
	if in.Op != OpNop {
		t.Errorf("Op = %v, want OpNop", in.Op)
	}
}

func TestDecodeLUI(t *testing.T) {
	// lui $t9, 0x0041
	word := uint32(0x0f<<26) | uint32(25)<<16 | 0x0041
	in := Decode(0x1000, word)
	if in.Op != OpLUI {
		t.Fatalf("Op = %v, want OpLUI", in.Op)
	}
	if in.Rt != 25 {
		t.Errorf("Rt = %d, want 25", in.Rt)
	}
	if in.Imm != 0x0041 {
		t.Errorf("Imm = 0x%x, want 0x41", in.Imm)
	}
}

func TestDecodeADDIUNegativeImm(t *testing.T) {
	// addiu $t9, $t9, -4
	word := uint32(0x09<<26) | uint32(25)<<21 | uint32(25)<<16 | uint32(0xfffc)
	in := Decode(0x1000, word)
	if in.Op != OpADDIU {
		t.Fatalf("Op = %v, want OpADDIU", in.Op)
	}
	if in.Imm != -4 {
		t.Errorf("Imm = %d, want -4", in.Imm)
	}
}

func TestDecodeJJumpTarget(t *testing.T) {
	// j 0x00401000, encoded at addr 0x00400010.
	target := uint32(0x00401000)
	word := uint32(0x02<<26) | (target >> 2)
	in := Decode(0x00400010, word)
	if in.Op != OpJ {
		t.Fatalf("Op = %v, want OpJ", in.Op)
	}
	if in.Target != target {
		t.Errorf("Target = 0x%x, want 0x%x", in.Target, target)
	}
	if !in.Op.HasDelaySlot() {
		t.Error("j should have a delay slot")
	}
}

func TestDecodeJALR(t *testing.T) {
	// jalr $t9 -> fn encoded: rs=25($t9), rd=31($ra), funct=0x09
	word := uint32(25)<<21 | uint32(31)<<11 | 0x09
	in := Decode(0x1000, word)
	if in.Op != OpJALR {
		t.Fatalf("Op = %v, want OpJALR", in.Op)
	}
	if in.Rs != 25 || in.Rd != 31 {
		t.Errorf("Rs=%d Rd=%d, want Rs=25 Rd=31", in.Rs, in.Rd)
	}
}

func TestDecodeBEQL(t *testing.T) {
	word := uint32(0x14<<26) | uint32(4)<<21 | uint32(5)<<16 | uint32(2)
	in := Decode(0x1000, word)
	if in.Op != OpBEQL {
		t.Fatalf("Op = %v, want OpBEQL", in.Op)
	}
	if !in.Op.IsLikelyBranch() {
		t.Error("beql should be a likely branch")
	}
	if in.Op.IsUnconditionalJump() {
		t.Error("beql is not unconditional")
	}
}

func TestDecodeMtc1Mfc1(t *testing.T) {
	mtc1 := uint32(0x11<<26) | uint32(4)<<21 | uint32(6)<<16 | uint32(3)<<11
	in := Decode(0x1000, mtc1)
	if in.Op != OpMTC1 {
		t.Fatalf("Op = %v, want OpMTC1", in.Op)
	}
	mfc1 := uint32(0x11<<26) | uint32(0)<<21 | uint32(6)<<16 | uint32(3)<<11
	in = Decode(0x1000, mfc1)
	if in.Op != OpMFC1 {
		t.Fatalf("Op = %v, want OpMFC1", in.Op)
	}
}

func TestDecodeUnknown(t *testing.T) {
	// opcode 0x3a is unassigned in MIPS-I/II.
	word := uint32(0x3a << 26)
	in := Decode(0x1000, word)
	if in.Op != OpUnknown {
		t.Errorf("Op = %v, want OpUnknown", in.Op)
	}
}
