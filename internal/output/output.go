// Package output writes recomp's pipeline results to files: the
// emitted pseudo-C program itself, and the debug JSON dumps the `scan`/
// `disasm`/`graph` subcommands expose for inspecting a run without
// reading the full emitted source.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"recomp/internal/diag"
	"recomp/internal/emit"
	"recomp/internal/recomp"
)

// WriteProgram runs internal/emit and writes the result to path,
// creating parent directories as needed.
func WriteProgram(path string, ctx *recomp.Context, opts emit.Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if err := emit.Run(ctx, f, opts); err != nil {
		return fmt.Errorf("output: emit %s: %w", path, err)
	}
	return nil
}

// FunctionEntry is one row of functions.json: a recovered Function's
// signature and bounds, without the full Insns slice functions.json
// readers don't need.
type FunctionEntry struct {
	Entry     uint32 `json:"entry"`
	EndAddr   uint32 `json:"end_addr"`
	Name      string `json:"name,omitempty"`
	NArgs     uint32 `json:"nargs"`
	NRet      uint32 `json:"nret"`
	V0In      bool   `json:"v0_in"`
	ByFuncPtr bool   `json:"referenced_by_function_pointer"`
}

// WriteFunctionsJSON writes dir/functions.json, one entry per function
// pass 6 finished signature inference for, sorted by entry address.
func WriteFunctionsJSON(dir string, ctx *recomp.Context) error {
	entries := make([]FunctionEntry, 0, len(ctx.Functions))
	for _, fn := range ctx.FunctionsInOrder() {
		entries = append(entries, FunctionEntry{
			Entry:     fn.Entry,
			EndAddr:   fn.EndAddr,
			Name:      ctx.SymbolNames[fn.Entry],
			NArgs:     fn.NArgs,
			NRet:      fn.NRet,
			V0In:      fn.V0In,
			ByFuncPtr: fn.ReferencedByFunctionPointer,
		})
	}
	return writeJSON(filepath.Join(dir, "functions.json"), entries)
}

// WriteDiagsJSON writes every non-fatal diagnostic a pass raised to
// dir/diags.json — heuristic misses a --conservative or stricter run
// would want to review.
func WriteDiagsJSON(dir string, diags *diag.Diags) error {
	return writeJSON(filepath.Join(dir, "diags.json"), diags.Items())
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
