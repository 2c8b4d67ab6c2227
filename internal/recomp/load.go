package recomp

import (
	"recomp/internal/decode"
	"recomp/internal/diag"
	"recomp/internal/elfx"
)

// Load opens path, validates it, and builds a Context whose Insns slice
// holds one decoded instruction per .text word plus the trailing NOP
// sentinel, with labels/functions/GOT tables resolved from .dynsym and
// .dynamic. This is the Go analogue of parse_elf + r_disassemble: a
// malformed section layout is always a fatal diag.KindMalformed error,
// never a best-effort diagnostic.
func Load(path string, conservative bool) (*Context, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, diag.Fatalf(diag.KindMalformed, "%v", err)
	}
	defer ef.Close()

	ctx := NewContext(conservative)
	ctx.TextVAddr = uint32(ef.Text.VAddr)
	ctx.TextLen = uint32(len(ef.Text.Bytes))
	ctx.RoData = ef.RoData
	ctx.Data = ef.Data
	ctx.BSS = ef.BSS

	disassemble(ctx, ef.Text.Bytes)

	if err := loadSymbols(ctx, ef); err != nil {
		return nil, err
	}

	if ef.GOT != nil {
		if err := loadGOT(ctx, ef); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

// disassemble decodes every .text word into ctx.Insns and appends the
// trailing NOP sentinel pass 3 relies on to stop delay-slot/successor
// walks from reading past the end of .text.
func disassemble(ctx *Context, text []byte) {
	n := len(text) / 4
	ctx.Insns = make([]Insn, 0, n+1)
	for i := 0; i < n; i++ {
		addr := ctx.TextVAddr + uint32(i*4)
		word := be32(text, i*4)
		ctx.Insns = append(ctx.Insns, Insn{Inst: decode.Decode(addr, word), LinkedInsn: -1})
	}
	sentinelAddr := ctx.TextVAddr + uint32(n*4)
	ctx.Insns = append(ctx.Insns, Insn{
		Inst:                 decode.Decode(sentinelAddr, 0),
		LinkedInsn:           -1,
		NoFollowingSuccessor: true,
	})
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}

// loadSymbols walks .dynsym (or .symtab, when there is no dynamic linking
// info) to populate labels, functions, main/_mcount and the procedure table
// range, mirroring parse_elf's dynsym loop. Only function symbols whose
// section index is SHN_MIPS_TEXT are registered; data-object symbols
// (SHN_MIPS_ACOMMON/SHN_MIPS_DATA) are matched but nothing is recorded for
// them.
func loadSymbols(ctx *Context, ef *elfx.File) error {
	syms, err := ef.Symbols()
	if err != nil {
		return diag.Fatalf(diag.KindMalformed, "%v", err)
	}

	for _, s := range syms {
		switch s.Name {
		case "_procedure_table":
			ctx.ProcedureTableStart = s.Value
		case "_procedure_table_size":
			ctx.ProcedureTableLen = 40 * s.Value
		}

		isTextFunc := s.Kind == elfx.SHNMIPSText && s.Func
		isDataObject := !s.Func && (s.Kind == elfx.SHNMIPSAComm || s.Kind == elfx.SHNMIPSData)
		if !isTextFunc && !isDataObject {
			continue
		}

		if isTextFunc {
			ctx.AddFunction(s.Value)
			ctx.LabelAddresses[s.Value] = true
			if s.Name == "main" {
				ctx.MainAddr = s.Value
			}
			if s.Name == "_mcount" {
				ctx.MCountAddr = s.Value
			}
			ctx.SymbolNames[s.Value] = s.Name
		}
	}
	return nil
}

// loadGOT resolves every dynsym entry with a GOT slot (index >= FirstSym)
// into the same got_globals[] the idiom pass consults when rewriting
// GOT-relative memory operands, mirroring parse_elf's second symbol pass.
func loadGOT(ctx *Context, ef *elfx.File) error {
	got := ef.GOT
	ctx.GPValue = got.GPValue
	ctx.GPValueAdj = got.GPValueAdj
	ctx.GOTLocals = append([]uint32(nil), got.Locals...)

	syms, err := ef.Symbols()
	if err != nil {
		return diag.Fatalf(diag.KindMalformed, "%v", err)
	}
	if uint32(len(syms))+1 < got.DynSymNo {
		return diag.Fatalf(diag.KindMalformed, "dynsym count %d below DT_MIPS_SYMTABNO %d", len(syms)+1, got.DynSymNo)
	}

	globalGOTNo := got.DynSymNo - got.FirstSym
	ctx.GOTGlobals = make([]uint32, globalGOTNo)

	// debug/elf's symbol slice omits the null symbol at dynsym index 0,
	// so dynsym index i corresponds to syms[i-1].
	symbolAt := func(i uint32) elfx.Symbol {
		if i == 0 {
			return elfx.Symbol{}
		}
		return syms[i-1]
	}

	for i := uint32(0); i < got.DynSymNo; i++ {
		if i < got.FirstSym {
			continue
		}
		s := symbolAt(i)
		gotWord := got.Word(int(got.LocalGOTNo + (i - got.FirstSym)))

		var value uint32
		switch {
		case s.Kind == elfx.SHNMIPSText && s.Func:
			// Include the 3-instruction $gp-header preamble so callers
			// land past it, matching the original's deliberate choice
			// to store addr (not the raw GOT word) for text functions.
			value = s.Value
			ctx.LabelAddresses[s.Value] = true
		case !s.Func && s.Kind == 0: // SHN_UNDEF: defined externally (e.g. libc)
			value = gotWord
		default:
			value = s.Value
		}
		ctx.GOTGlobals[i-got.FirstSym] = value
		ctx.SymbolNames[value] = s.Name
	}
	return nil
}
