package main

import (
	"recomp/internal/cfg"
	"recomp/internal/diag"
	"recomp/internal/funcs"
	"recomp/internal/idiom"
	"recomp/internal/liveness"
	"recomp/internal/mem"
	"recomp/internal/recomp"
)

// runPipeline loads path and runs every analysis pass through signature
// inference (components A-I), leaving emission (component J) to the
// caller. This is the Go analogue of main()'s straight-line sequence in
// the original: parse_elf, then the fixed r_pass1..r_pass6 order, with
// each stage's error short-circuiting the rest.
func runPipeline(path string, conservative, strict bool) (*recomp.Context, error) {
	ctx, err := recomp.Load(path, conservative)
	if err != nil {
		return nil, err
	}
	if strict {
		ctx.Diag.Mode = diag.ModeStrict
	}

	mem.ScanAll(ctx)

	if err := idiom.Run(ctx); err != nil {
		return nil, err
	}
	if err := funcs.Run(ctx); err != nil {
		return nil, err
	}
	if err := cfg.Run(ctx); err != nil {
		return nil, err
	}
	if err := liveness.Run(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}
