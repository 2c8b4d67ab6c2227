package abi

import "testing"

func TestLookupKnown(t *testing.T) {
	e, ok := Lookup("qsort")
	if !ok {
		t.Fatal("qsort not found")
	}
	if e.Params != "vpuut" {
		t.Errorf("qsort params = %q, want vpuut", e.Params)
	}
	if e.Vararg() {
		t.Error("qsort should not be vararg")
	}
}

func TestLookupVararg(t *testing.T) {
	e, ok := Lookup("printf")
	if !ok {
		t.Fatal("printf not found")
	}
	if !e.Vararg() {
		t.Error("printf should be vararg")
	}
	if e.Return() != 'i' {
		t.Errorf("printf return = %c, want i", e.Return())
	}
}

func TestLookupMissing(t *testing.T) {
	if _, ok := Lookup("definitely_not_a_real_function"); ok {
		t.Error("expected lookup miss")
	}
}

func TestNoMemFlag(t *testing.T) {
	e, _ := Lookup("sqrt")
	if !e.NoMem() {
		t.Error("sqrt should be FLAG_NO_MEM")
	}
	e, _ = Lookup("malloc")
	if e.NoMem() {
		t.Error("malloc should not be FLAG_NO_MEM")
	}
}

func TestArgSlotsAlignsWideTypes(t *testing.T) {
	// "ecvt" -> "dipp": double, int, ptr, ptr.
	// double must start on an even slot, so it takes slots 0-1,
	// then int takes slot 2, then the two pointers take 3 and 4.
	slots := ArgSlots("dipp")
	want := []int{0, 2, 3, 4}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slots[%d] = %d, want %d", i, slots[i], want[i])
		}
	}
}

func TestArgSlotsReAlignsAfterOddLeadingScalar(t *testing.T) {
	// "idi": int (slot 0), double must realign from slot 1 to slot 2-3.
	slots := ArgSlots("idi")
	want := []int{0, 2, 4}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slots[%d] = %d, want %d", i, slots[i], want[i])
		}
	}
}

func TestArgFloatRegsRoutesLeadingDoubleThroughFa0(t *testing.T) {
	// sqrt "dd": a single leading double goes through fa0.
	regs := ArgFloatRegs("d")
	want := []int{FA0}
	if len(regs) != len(want) || regs[0] != want[0] {
		t.Errorf("regs = %v, want %v", regs, want)
	}
}

func TestArgFloatRegsRoutesTwoLeadingFloatsThroughFa0Fa2(t *testing.T) {
	regs := ArgFloatRegs("ff")
	want := []int{FA0, FA2}
	if len(regs) != len(want) {
		t.Fatalf("regs = %v, want %v", regs, want)
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Errorf("regs[%d] = %d, want %d", i, regs[i], want[i])
		}
	}
}

func TestArgFloatRegsStopsAtFirstNonFloat(t *testing.T) {
	// atof "dp": the double leads, so it still gets fa0 even though a
	// pointer follows.
	regs := ArgFloatRegs("dp")
	want := []int{FA0, -1}
	if len(regs) != len(want) {
		t.Fatalf("regs = %v, want %v", regs, want)
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Errorf("regs[%d] = %d, want %d", i, regs[i], want[i])
		}
	}
}

func TestArgFloatRegsFallsThroughAfterLeadingInt(t *testing.T) {
	// _atod "dpii": the lookup's return type is 'd', but here we're
	// testing a hypothetical arg string with a float trailing an int —
	// once a non-float has been seen, later floats never use fa0/fa2.
	regs := ArgFloatRegs("id")
	want := []int{-1, -1}
	if len(regs) != len(want) {
		t.Fatalf("regs = %v, want %v", regs, want)
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Errorf("regs[%d] = %d, want %d", i, regs[i], want[i])
		}
	}
}

func TestArgFloatRegsExhaustsAfterTwoDoubles(t *testing.T) {
	// A third leading double has no FP argument register left.
	regs := ArgFloatRegs("ddd")
	want := []int{FA0, FA2, -1}
	if len(regs) != len(want) {
		t.Fatalf("regs = %v, want %v", regs, want)
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Errorf("regs[%d] = %d, want %d", i, regs[i], want[i])
		}
	}
}

func TestTableHasNoDuplicateNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Table {
		if seen[e.Name] {
			t.Errorf("duplicate extern function name %q", e.Name)
		}
		seen[e.Name] = true
	}
}
