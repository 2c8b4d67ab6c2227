// Package emit implements pass J: walking the finished Context and
// writing out a pseudo-C translation unit, one statement per instruction,
// one function per recovered Function, plus the static data the program
// needs to run standalone.
package emit

import (
	"fmt"
	"io"

	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/recomp"
)

// Options controls how the emitted program declares its register state.
type Options struct {
	// Conservative reserves $s0-$s7/$fp as file-scope statics that
	// survive across calls instead of per-function locals. It changes
	// nothing else in the emitted program.
	Conservative bool
}

// Run writes a complete pseudo-C translation unit for ctx to w: the
// static data sections, forward declarations, the trampoline dispatch
// table (always written, with one case per reachable function-pointer
// target), and one function body per reachable Function.
func Run(ctx *recomp.Context, w io.Writer, opts Options) error {
	e := &emitter{ctx: ctx, w: w, opts: opts}
	e.writeHeader()
	e.writeData()
	e.writePrototypes()
	e.writeTrampoline()
	for _, fn := range ctx.FunctionsInOrder() {
		if err := e.writeFunction(fn); err != nil {
			return err
		}
	}
	e.writeEntryPoint()
	return e.err
}

type emitter struct {
	ctx  *recomp.Context
	w    io.Writer
	opts Options
	err  error
}

func (e *emitter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, err := fmt.Fprintf(e.w, format, args...)
	if err != nil {
		e.err = err
	}
}

func (e *emitter) writeHeader() {
	e.printf("#include \"header.h\"\n\n")
	if e.opts.Conservative {
		e.printf("static uint32_t s0, s1, s2, s3, s4, s5, s6, s7, fp;\n\n")
	}
}

// reachable reports whether fn was ever actually reached by pass 4's
// forward sweep — the same f_livein==0 signal pass 4's doc comment
// promises this package would use to elide dead functions.
func reachable(ctx *recomp.Context, fn *recomp.Function) bool {
	idx, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return false
	}
	return ctx.Insns[idx].FLiveIn != 0
}

func (e *emitter) writePrototypes() {
	for _, fn := range e.ctx.FunctionsInOrder() {
		if !reachable(e.ctx, fn) {
			continue
		}
		e.writeSignature(fn)
		e.printf(";\n")
	}
	e.printf("\n")
}

func funcName(ctx *recomp.Context, addr uint32) string {
	if name, ok := ctx.SymbolNames[addr]; ok && name != "" {
		return "f_" + name
	}
	return fmt.Sprintf("func_%x", addr)
}

func (e *emitter) writeSignature(fn *recomp.Function) {
	switch fn.NRet {
	case 0:
		e.printf("static void %s(uint8_t *mem, uint32_t sp", funcName(e.ctx, fn.Entry))
	case 1:
		e.printf("static uint32_t %s(uint8_t *mem, uint32_t sp", funcName(e.ctx, fn.Entry))
	default:
		e.printf("static uint64_t %s(uint8_t *mem, uint32_t sp", funcName(e.ctx, fn.Entry))
	}
	if fn.V0In {
		e.printf(", uint32_t v0")
	}
	for i := uint32(0); i < fn.NArgs; i++ {
		e.printf(", uint32_t %s", decode.RegName(decode.RegA0+byte(i)))
	}
	e.printf(")")
}

func (e *emitter) writeFunction(fn *recomp.Function) error {
	if !reachable(e.ctx, fn) {
		return nil
	}

	e.writeSignature(fn)
	e.printf(" {\n")
	e.writeLocals(fn)

	startIdx, err := e.ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return err
	}
	endIdx, err := e.ctx.AddrToIndex(fn.EndAddr)
	if err != nil {
		endIdx = len(e.ctx.Insns)
	}

	for i := startIdx; i < endIdx; i++ {
		addr := e.ctx.IndexToAddr(i)
		if e.ctx.LabelAddresses[addr] {
			e.printf("L%x:\n", addr)
		}
		if err := e.emitInstr(fn, i); err != nil {
			return err
		}
	}

	e.printf("}\n\n")
	return e.err
}

// writeLocals declares every register the body's statements reference.
// Conservative mode leaves $s0-$s7/$fp to the file-scope statics
// writeHeader already declared; everything else is always a fresh local,
// matching r_dump_c's prologue (the original zero-initializes every
// register it declares rather than leaving callee-saved locals
// uninitialized garbage, since nothing here models an actual incoming
// stack frame to read them from).
func (e *emitter) writeLocals(fn *recomp.Function) {
	e.printf("\tconst uint32_t zero = 0;\n")
	e.printf("\tuint32_t at=0, v1=0, t0=0, t1=0, t2=0, t3=0, t4=0, t5=0, t6=0, t7=0, t8=0, t9=0, gp=0, ra=0;\n")
	if !e.opts.Conservative {
		e.printf("\tuint32_t s0=0, s1=0, s2=0, s3=0, s4=0, s5=0, s6=0, s7=0, fp=0;\n")
	}
	e.printf("\tuint32_t lo=0, hi=0;\n")
	e.printf("\tuint32_t fpr[32] = {0};\n") // COP1 registers, raw bits; fa0=fpr[12], fa2=fpr[14], fv0=fpr[0]
	e.printf("\tuint64_t temp64;\n")
	e.printf("\tdouble tempf64 = 0;\n")
	e.printf("\tvoid *dest;\n")
	if !fn.V0In {
		e.printf("\tuint32_t v0 = 0;\n")
	}
	for i := fn.NArgs; i < 4; i++ {
		e.printf("\tuint32_t %s = 0;\n", decode.RegName(decode.RegA0+byte(i)))
	}
	e.printf("\n")
}

func (e *emitter) writeEntryPoint() {
	main := e.ctx.FindFunction(e.ctx.MainAddr)
	if main == nil {
		return
	}
	e.printf("int main(int argc, char **argv) {\n")
	e.printf("\tuint8_t *mem = image_init();\n")
	e.printf("\tuint32_t sp = image_stack_top(mem);\n")
	e.printf("\t%s(mem, sp, (uint32_t)(uintptr_t)argc, (uint32_t)(uintptr_t)argv);\n", funcName(e.ctx, main.Entry))
	e.printf("\treturn 0;\n")
	e.printf("}\n")
}

// effectiveOp resolves an idiom-recovered override the way every pass
// past idiom.Run reads an instruction's "real" opcode.
func effectiveOp(insn *recomp.Insn) decode.Op {
	if insn.RewriteOp != decode.OpInvalid {
		return insn.RewriteOp
	}
	return insn.Op
}

// effectiveImm resolves a patched address over the raw encoded
// immediate, the same ternary cfg.branchTarget and every idiom-recovery
// consumer apply before trusting Insn.Imm.
func effectiveImm(insn *recomp.Insn) int64 {
	if insn.Patched {
		return int64(int32(insn.PatchedAddr))
	}
	return int64(insn.Imm)
}

func memBase(ctx *recomp.Context, insn *recomp.Insn) string {
	return decode.RegName(insn.Rs)
}

func fatalf(addr uint32, kind diag.Kind, format string, args ...any) error {
	return diag.Fatalf(kind, "0x%x: "+format, append([]any{addr}, args...)...)
}
