// Package disasm renders decoded MIPS instructions back to text, the way
// the original's -dump mode prints a plain listing alongside the emitted
// pseudo-C — useful for the `recomp disasm` debug subcommand to inspect
// a binary without reading generated source.
package disasm

import (
	"fmt"
	"strings"

	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// SymbolLookup resolves an address to a symbolic name. Returns ("", false)
// if unknown.
type SymbolLookup func(addr uint32) (name string, ok bool)

// Operands renders the operand list for one decoded instruction in
// $reg, $reg, imm order, mirroring plain MIPS assembler syntax.
func Operands(in decode.Inst) string {
	rd := decode.RegName(in.Rd)
	rs := decode.RegName(in.Rs)
	rt := decode.RegName(in.Rt)

	switch in.Op {
	case decode.OpNop, decode.OpBREAK, decode.OpSYSCALL:
		return ""
	case decode.OpADD, decode.OpADDU, decode.OpSUB, decode.OpSUBU,
		decode.OpAND, decode.OpOR, decode.OpXOR, decode.OpNOR,
		decode.OpSLT, decode.OpSLTU:
		return fmt.Sprintf("%s, %s, %s", rd, rs, rt)
	case decode.OpSLL, decode.OpSRL, decode.OpSRA:
		return fmt.Sprintf("%s, %s, %d", rd, rt, in.Shamt)
	case decode.OpSLLV, decode.OpSRLV, decode.OpSRAV:
		return fmt.Sprintf("%s, %s, %s", rd, rt, rs)
	case decode.OpADDIU, decode.OpADDI, decode.OpANDI, decode.OpORI,
		decode.OpXORI, decode.OpSLTI, decode.OpSLTIU:
		return fmt.Sprintf("%s, %s, %d", rt, rs, in.Imm)
	case decode.OpLUI:
		return fmt.Sprintf("%s, 0x%x", rt, uint32(in.Imm)&0xffff)
	case decode.OpLB, decode.OpLBU, decode.OpLH, decode.OpLHU, decode.OpLW, decode.OpLWU,
		decode.OpLWL, decode.OpLWR, decode.OpLWC1, decode.OpLDC1:
		return fmt.Sprintf("%s, %d(%s)", rt, in.Imm, rs)
	case decode.OpSB, decode.OpSH, decode.OpSW, decode.OpSWL, decode.OpSWR,
		decode.OpSWC1, decode.OpSDC1:
		return fmt.Sprintf("%s, %d(%s)", rt, in.Imm, rs)
	case decode.OpMTC1:
		return fmt.Sprintf("%s, $f%d", rt, in.Rd)
	case decode.OpMFC1:
		return fmt.Sprintf("%s, $f%d", rt, in.Rd)
	case decode.OpMULT, decode.OpMULTU, decode.OpDIV, decode.OpDIVU:
		return fmt.Sprintf("%s, %s", rs, rt)
	case decode.OpMFHI, decode.OpMFLO:
		return rd
	case decode.OpMTHI, decode.OpMTLO:
		return rs
	case decode.OpJ, decode.OpJAL:
		return fmt.Sprintf("0x%x", in.Target)
	case decode.OpJR:
		return rs
	case decode.OpJALR:
		return fmt.Sprintf("%s, %s", rd, rs)
	case decode.OpBEQ, decode.OpBNE, decode.OpBEQL, decode.OpBNEL:
		return fmt.Sprintf("%s, %s, 0x%x", rs, rt, in.Addr+4+uint32(in.Imm)*4)
	case decode.OpBLEZ, decode.OpBGTZ, decode.OpBLTZ, decode.OpBGEZ,
		decode.OpBLEZL, decode.OpBGTZL, decode.OpBLTZL, decode.OpBGEZL,
		decode.OpBGEZAL, decode.OpBLTZAL:
		return fmt.Sprintf("%s, 0x%x", rs, in.Addr+4+uint32(in.Imm)*4)
	default:
		return fmt.Sprintf("0x%08x", in.Raw)
	}
}

// Text renders one decoded instruction as "<mnemonic> <operands>".
func Text(in decode.Inst) string {
	ops := Operands(in)
	if ops == "" {
		return in.Op.String()
	}
	return in.Op.String() + " " + ops
}

// Format renders ctx.Insns[start:end) as a stable text listing: one line
// per instruction, address then raw bytes then disassembly, with a symbol
// comment when lookup resolves the address. Mirrors the teacher's
// disasm.Format line layout.
func Format(ctx *recomp.Context, start, end int, lookup SymbolLookup) string {
	var b strings.Builder
	for i := start; i < end && i < len(ctx.Insns); i++ {
		in := ctx.Insns[i].Inst
		fmt.Fprintf(&b, "0x%08x  %08x  %s", in.Addr, in.Raw, Text(in))
		if lookup != nil {
			if name, ok := lookup(in.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatFunction renders one function's full instruction range, labeling
// its entry with its symbol name (or a func_<addr> placeholder) before the
// listing.
func FormatFunction(ctx *recomp.Context, fn *recomp.Function, lookup SymbolLookup) string {
	startIdx, err := ctx.AddrToIndex(fn.Entry)
	if err != nil {
		return ""
	}
	endIdx, err := ctx.AddrToIndex(fn.EndAddr)
	if err != nil {
		endIdx = len(ctx.Insns)
	}

	name := ctx.SymbolNames[fn.Entry]
	if name == "" {
		name = fmt.Sprintf("func_%x", fn.Entry)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; %s @ 0x%08x\n", name, fn.Entry)
	b.WriteString(Format(ctx, startIdx, endIdx, lookup))
	return b.String()
}

// SymbolNameLookup adapts ctx.SymbolNames to a SymbolLookup.
func SymbolNameLookup(ctx *recomp.Context) SymbolLookup {
	return func(addr uint32) (string, bool) {
		name, ok := ctx.SymbolNames[addr]
		return name, ok
	}
}
