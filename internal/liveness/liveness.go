package liveness

import (
	"recomp/internal/recomp"
)

// Run executes passes 4, 5, and 6 in that fixed order, mirroring
// rrecomp.cpp's sequential r_pass4/r_pass5/r_pass6. Backward liveness
// seeds part of its worklist from forward liveness's settled FLiveIn
// (every instruction pass 4 marked reachable, not just return sites —
// see runBackward), so the two can no longer run concurrently the way
// an initial cross-cutting design once assumed; pass 6 then intersects
// both once they've settled.
func Run(ctx *recomp.Context) error {
	runForward(ctx)
	runBackward(ctx)
	return inferSignatures(ctx)
}
