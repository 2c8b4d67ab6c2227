// Package mem harvests candidate function pointers embedded as plain data
// words in .rodata/.data — switch-dispatch tables, vtables, jump-table
// fallbacks — that the idiom and liveness passes need to treat as call
// targets even though nothing ever materializes them through $t9.
package mem

import "recomp/internal/recomp"

// ScanSection scans a loaded .rodata/.data section four bytes at a time,
// treating any 4-aligned word that lands inside .text as a function
// pointer, except for entries on the deny list or inside the
// _procedure_table range. Matches inspect_data_function_pointers exactly,
// with the deny list and procedure-table bounds pulled from ctx rather
// than hard-coded, per Design Notes §9.
func ScanSection(ctx *recomp.Context, sectionVAddr uint32, data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		addr := be32(data, i)
		at := sectionVAddr + uint32(i)

		if ctx.PointerDenyList[addr] {
			continue
		}
		if ctx.ProcedureTableLen > 0 && at >= ctx.ProcedureTableStart && at < ctx.ProcedureTableStart+ctx.ProcedureTableLen {
			continue
		}
		if addr >= ctx.TextVAddr && addr < ctx.TextVAddr+ctx.TextLen && addr%4 == 0 {
			ctx.DataFunctionPointers = append(ctx.DataFunctionPointers, recomp.DataFuncPtr{At: at, Target: addr})
			ctx.LabelAddresses[addr] = true
			ctx.AddFunction(addr)
			if fn := ctx.Functions[addr]; fn != nil {
				fn.ReferencedByFunctionPointer = true
			}
		}
	}
}

// ScanAll harvests both .rodata and .data, the two sections the original
// calls inspect_data_function_pointers on in main().
func ScanAll(ctx *recomp.Context) {
	if len(ctx.RoData.Bytes) > 0 {
		ScanSection(ctx, uint32(ctx.RoData.VAddr), ctx.RoData.Bytes)
	}
	if len(ctx.Data.Bytes) > 0 {
		ScanSection(ctx, uint32(ctx.Data.VAddr), ctx.Data.Bytes)
	}
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}
