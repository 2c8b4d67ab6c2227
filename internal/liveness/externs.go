package liveness

import (
	"recomp/internal/abi"
	"recomp/internal/decode"
	"recomp/internal/recomp"
)

// lookupExtern resolves the abi.ExternFunction a jal's extern_function
// edge targets, given the index of the jal's delay slot (the edge's
// source in the CFG pass 3 built). Returns ok=false for a call to an
// address with no known symbol name or no entry in internal/abi's
// table — callers fall back to the same conservative treatment as an
// unresolved function pointer.
func lookupExtern(ctx *recomp.Context, delaySlotIdx int) (abi.ExternFunction, bool) {
	jalIdx := delaySlotIdx - 1
	if jalIdx < 0 || jalIdx >= len(ctx.Insns) {
		return abi.ExternFunction{}, false
	}
	jal := ctx.Insns[jalIdx]
	if jal.Op != decode.OpJAL {
		return abi.ExternFunction{}, false
	}
	dest := jal.Target
	if jal.Patched {
		dest = jal.PatchedAddr
	}
	name, ok := ctx.SymbolNames[dest]
	if !ok {
		return abi.ExternFunction{}, false
	}
	return abi.Lookup(name)
}

// externArgUseMask derives the backward "use" contribution a call to ext
// generates at its call site, per the O32 argument classification rules:
// vararg externs conservatively claim all four integer argument slots;
// everything else is derived from its declared parameter types.
func externArgUseMask(ext abi.ExternFunction) Mask {
	if ext.Vararg() {
		return varargUseMask()
	}
	params := abi.ParamTypes(ext.Args())
	slots := abi.ArgSlots(ext.Args())
	floatRegs := abi.ArgFloatRegs(ext.Args())
	return argUseMask(slots, params, floatRegs)
}
