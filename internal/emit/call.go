package emit

import (
	"recomp/internal/abi"
	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// emitInternalCall mirrors r_dump_jal's internal-call branch: the
// callee's own inferred signature (v0_in, nargs, nret) decides exactly
// which registers get passed and which result registers get written
// back, rather than assuming the full O32 four-argument/two-return
// convention every call site.
func (e *emitter) emitInternalCall(fn *recomp.Function) {
	switch fn.NRet {
	case 0:
		e.printf("\t%s(mem, sp", funcName(e.ctx, fn.Entry))
	case 1:
		e.printf("\tv0 = %s(mem, sp", funcName(e.ctx, fn.Entry))
	default:
		e.printf("\ttemp64 = %s(mem, sp", funcName(e.ctx, fn.Entry))
	}
	if fn.V0In {
		e.printf(", v0")
	}
	for i := uint32(0); i < fn.NArgs; i++ {
		e.printf(", %s", decode.RegName(decode.RegA0+byte(i)))
	}
	e.printf(");\n")
	if fn.NRet == 2 {
		e.printf("\tv0 = (uint32_t)(temp64 >> 32);\n\tv1 = (uint32_t)temp64;\n")
	}
}

// emitIndirectCall mirrors the unresolved-target fallback both jalr and
// an unresolvable jal share: dispatch through the trampoline every
// function-pointer-reachable Function is registered in, using the same
// conservative four-integer-argument/two-return convention pass 4/5
// fall back to for a function pointer of unknown arity.
func (e *emitter) emitIndirectCall(dest any) {
	e.printf("\ttemp64 = trampoline(mem, sp, a0, a1, a2, a3, ")
	switch d := dest.(type) {
	case uint32:
		e.printf("0x%x", d)
	case string:
		e.printf("%s", d)
	}
	e.printf(");\n")
	e.printf("\tv0 = (uint32_t)(temp64 >> 32);\n\tv1 = (uint32_t)temp64;\n")
}

// emitExternCall mirrors r_dump_jal's wrapper_<name> branch: arguments
// are packed into $a0-$a3/stack per internal/abi's O32 slot rules, wide
// integer types (int64_t/uint64_t) occupy a register pair starting on
// an even slot, a float or double classified by abi.ArgFloatRegs as
// only_floats_so_far is read from its fa0/fa2 register pair instead, and
// a vararg extern additionally spills all four argument registers to
// the stack shadow area before the call so the wrapper can walk them
// the way a real va_list would. The return value follows the same
// split: 'f'/'d' land in the fv0 FP register pair, not $v0/$v1.
func (e *emitter) emitExternCall(ext abi.ExternFunction) {
	if ext.Vararg() {
		for j := 0; j < 4; j++ {
			e.printf("\tMEM_U32(sp + %d) = %s;\n", j*4, decode.RegName(decode.RegA0+byte(j)))
		}
	}
	switch ext.Return() {
	case 'v':
	case 'l', 'j':
		e.printf("\ttemp64 = ")
	case 'd':
		e.printf("\ttempf64 = ")
	case 'f':
		e.printf("\tfpr[%d] = bitcast_f32_to_u32(", abi.FV0)
	default:
		e.printf("\tv0 = ")
	}

	e.printf("wrapper_%s(", ext.Name)
	first := true
	write := func(s string) {
		if !first {
			e.printf(", ")
		}
		first = false
		e.printf("%s", s)
	}
	if !ext.NoMem() {
		write("mem")
	}

	params := abi.ParamTypes(ext.Args())
	slots := abi.ArgSlots(ext.Args())
	floatRegs := abi.ArgFloatRegs(ext.Args())
	for idx, c := range params {
		if fr := floatRegs[idx]; fr >= 0 {
			if c == 'd' {
				write(sprintf("double_from_FloatReg(fpr, %d)", fr))
			} else {
				write(sprintf("bitcast_u32_to_f32(fpr[%d])", fr))
			}
			continue
		}
		slot := slots[idx]
		switch {
		case abi.IsWide(c):
			hi, lo := argSlotReg(slot), argSlotReg(slot+1)
			if c == 'd' {
				write(sprintf("bitcast_u64_to_f64(((uint64_t)%s << 32) | %s)", hi, lo))
			} else {
				cast := "uint64_t"
				if c == 'l' {
					cast = "int64_t"
				}
				write(sprintf("(%s)(((uint64_t)%s << 32) | %s)", cast, hi, lo))
			}
		case c == 'f':
			write(sprintf("bitcast_u32_to_f32(%s)", argSlotReg(slot)))
		default:
			write(sprintf("(%s)%s", abi.TypeName(c), argSlotReg(slot)))
		}
	}
	if ext.Vararg() {
		write("sp")
	}
	e.printf(")")
	if ext.Return() == 'f' {
		e.printf(")") // close the bitcast_f32_to_u32( opened above
	}
	e.printf(";\n")

	switch ext.Return() {
	case 'l', 'j':
		e.printf("\tv0 = (uint32_t)(temp64 >> 32);\n\tv1 = (uint32_t)temp64;\n")
	case 'd':
		e.printf("\tFloatReg_from_double(fpr, %d, tempf64);\n", abi.FV0)
	}
}

// argSlotReg names the register or stack-spill expression an O32
// argument slot (as internal/abi.ArgSlots numbers it) resolves to: the
// first four slots are $a0-$a3, every slot past that is a stack word at
// the call's own frame, mirroring the original's `pos < 4 ? r_r(a0+pos)
// : "MEM_U32(sp + ...)"` ternary.
func argSlotReg(slot int) string {
	if slot < 4 {
		return decode.RegName(decode.RegA0 + byte(slot))
	}
	return sprintf("MEM_U32(sp + %d)", slot*4)
}

// writeTrampoline mirrors the original's dispatch table: a single switch
// on the runtime address with one case per reachable function ever seen
// through a data word or an li-materialized address, calling through to
// the real function body with the conservative four-argument/two-return
// convention. Unresolved jalr/jal calls dispatch through it as well; an
// address with no case reaches the default, which aborts.
func (e *emitter) writeTrampoline() {
	var ptrFuncs []*recomp.Function
	for _, fn := range e.ctx.FunctionsInOrder() {
		if fn.ReferencedByFunctionPointer && reachable(e.ctx, fn) {
			ptrFuncs = append(ptrFuncs, fn)
		}
	}

	// Always declared: an unresolved jal/jalr target dispatches here too,
	// even on a binary where nothing was harvested as a data/li function
	// pointer.
	e.printf("static uint64_t trampoline(uint8_t *mem, uint32_t sp, uint32_t a0, uint32_t a1, uint32_t a2, uint32_t a3, uint32_t fp_dest) {\n")
	e.printf("\tswitch (fp_dest) {\n")
	for _, fn := range ptrFuncs {
		e.printf("\tcase 0x%x: ", fn.Entry)
		switch fn.NRet {
		case 0:
			e.printf("%s(mem, sp", funcName(e.ctx, fn.Entry))
		case 1:
			e.printf("return (uint64_t)%s(mem, sp", funcName(e.ctx, fn.Entry))
		default:
			e.printf("return %s(mem, sp", funcName(e.ctx, fn.Entry))
		}
		for i := uint32(0); i < fn.NArgs; i++ {
			e.printf(", a%d", i)
		}
		e.printf(")")
		if fn.NRet == 1 {
			e.printf(" << 32")
		}
		e.printf(";")
		if fn.NRet == 0 {
			e.printf(" return 0;")
		}
		e.printf("\n")
	}
	e.printf("\tdefault: abort(); return 0;\n")
	e.printf("\t}\n")
	e.printf("}\n\n")
}
