package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"recomp/internal/disasm"
)

// cmdDisasm runs the pipeline through signature inference and writes a
// per-function annotated disassembly listing, one file per function under
// --out, or the whole program to stdout when --out is omitted.
func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	conservative := fs.Bool("conservative", false, "narrow best-effort heuristics instead of guessing")
	out := fs.String("out", "", "output directory (stdout if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: recomp disasm <elf> [--out dir]")
	}

	ctx, err := runPipeline(fs.Arg(0), *conservative, false)
	if err != nil {
		return err
	}

	lookup := disasm.SymbolNameLookup(ctx)

	if *out == "" {
		for _, fn := range ctx.FunctionsInOrder() {
			fmt.Print(disasm.FormatFunction(ctx, fn, lookup))
		}
		return nil
	}

	if err := os.MkdirAll(*out, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", *out, err)
	}
	for _, fn := range ctx.FunctionsInOrder() {
		name := ctx.SymbolNames[fn.Entry]
		if name == "" {
			name = fmt.Sprintf("func_%x", fn.Entry)
		}
		path := filepath.Join(*out, name+".asm")
		if err := os.WriteFile(path, []byte(disasm.FormatFunction(ctx, fn, lookup)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
