package main

import (
	"flag"
	"fmt"
	"os"

	"recomp/internal/emit"
	"recomp/internal/output"
)

// cmdEmit implements both the primary form (`recomp <elf>`) and the
// explicit `recomp emit` subcommand: run the full pipeline and write the
// resulting pseudo-C program to --out, or stdout when omitted.
func cmdEmit(args []string) error {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	conservative := fs.Bool("conservative", false, "keep $s0-$s7/$fp in file-scope statics instead of per-function locals")
	strict := fs.Bool("strict", false, "fail on first unresolved heuristic")
	out := fs.String("out", "", "output file (stdout if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: recomp [emit] [--conservative] <elf> [--out file]")
	}
	elfPath := fs.Arg(0)

	ctx, err := runPipeline(elfPath, *conservative, *strict)
	if err != nil {
		return err
	}

	opts := emit.Options{Conservative: *conservative}
	if *out == "" {
		return emit.Run(ctx, os.Stdout, opts)
	}
	return output.WriteProgram(*out, ctx, opts)
}
