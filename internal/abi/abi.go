// Package abi describes the O32 calling convention and the table of
// extern functions this recompiler knows how to call through a wrapper.
package abi

import "strings"

// Flag bits on an ExternFunction.
const (
	FlagNoMem  = 1 << 0 // does not read/write the recompiled image's memory
	FlagVararg = 1 << 1 // C variadic; argument slots beyond the named ones are conservative
)

// ExternFunction describes one function the emitted program calls through
// libc_impl-style wrapper_<name> trampolines rather than recompiling.
//
// Params is a type-string: the first character is the return type, the
// rest are argument types in order. Characters:
//
//	v void   i int32   u uint32   p pointer   f float32
//	d float64   l int64   j uint64   t trampoline (function pointer)
type ExternFunction struct {
	Name   string
	Params string
	Flags  int
}

func (e ExternFunction) Return() byte { return e.Params[0] }
func (e ExternFunction) Args() string { return e.Params[1:] }
func (e ExternFunction) Vararg() bool { return e.Flags&FlagVararg != 0 }
func (e ExternFunction) NoMem() bool  { return e.Flags&FlagNoMem != 0 }

// Table lists every extern function the emitter may call, in the order
// the original toolchain's libc_impl.c wrappers were declared.
var Table = []ExternFunction{
	{"exit", "vi", 0},
	{"abort", "v", 0},
	{"sbrk", "pi", 0},
	{"malloc", "pu", 0},
	{"calloc", "puu", 0},
	{"realloc", "ppu", 0},
	{"free", "vp", 0},
	{"fscanf", "ipp", FlagVararg},
	{"printf", "ip", FlagVararg},
	{"sprintf", "ipp", FlagVararg},
	{"fprintf", "ipp", FlagVararg},
	{"_doprnt", "ippp", 0},
	{"strlen", "up", 0},
	{"open", "ipii", 0},
	{"creat", "ipi", 0},
	{"access", "ipi", 0},
	{"rename", "ipp", 0},
	{"utime", "ipp", 0},
	{"flock", "iii", 0},
	{"chmod", "ipu", 0},
	{"umask", "ii", FlagNoMem},
	{"ecvt", "pdipp", 0},
	{"fcvt", "pdipp", 0},
	{"sqrt", "dd", FlagNoMem},
	{"sqrtf", "ff", FlagNoMem},
	{"atoi", "ip", 0},
	{"atol", "ip", 0},
	{"atof", "dp", 0},
	{"strtol", "ippi", 0},
	{"strtoul", "uppi", 0},
	{"strtoll", "lppi", 0},
	{"strtoull", "jppi", 0},
	{"strtod", "dpp", 0},
	{"strchr", "ppi", 0},
	{"strrchr", "ppi", 0},
	{"strcspn", "upp", 0},
	{"strpbrk", "ppp", 0},
	{"fstat", "iip", 0},
	{"stat", "ipp", 0},
	{"ftruncate", "iii", 0},
	{"bcopy", "vppu", 0},
	{"memcpy", "pppu", 0},
	{"memccpy", "pppiu", 0},
	{"read", "iipu", 0},
	{"write", "iipu", 0},
	{"fopen", "ppp", 0},
	{"freopen", "pppp", 0},
	{"fclose", "ip", 0},
	{"ftell", "ip", 0},
	{"rewind", "vp", 0},
	{"fseek", "ipii", 0},
	{"lseek", "iiii", 0},
	{"fflush", "ip", 0},
	{"dup", "ii", 0},
	{"dup2", "iii", 0},
	{"pipe", "ip", 0},
	{"perror", "vp", 0},
	{"fdopen", "iip", 0},
	{"memset", "ppiu", 0},
	{"bcmp", "ippu", 0},
	{"memcmp", "ippu", 0},
	{"getpid", "i", FlagNoMem},
	{"getpgrp", "i", 0},
	{"remove", "ip", 0},
	{"unlink", "ip", 0},
	{"close", "ii", 0},
	{"strcmp", "ipp", 0},
	{"strncmp", "ippu", 0},
	{"strcpy", "ppp", 0},
	{"strncpy", "pppu", 0},
	{"strcat", "ppp", 0},
	{"strncat", "pppu", 0},
	{"strtok", "ppp", 0},
	{"strstr", "ppp", 0},
	{"strdup", "pp", 0},
	{"toupper", "ii", FlagNoMem},
	{"tolower", "ii", FlagNoMem},
	{"gethostname", "ipu", 0},
	{"isatty", "ii", 0},
	{"strftime", "upupp", 0},
	{"times", "ip", 0},
	{"clock", "i", FlagNoMem},
	{"ctime", "pp", 0},
	{"localtime", "pp", 0},
	{"setvbuf", "ippiu", 0},
	{"__semgetc", "ip", 0},
	{"__semputc", "iip", 0},
	{"fgetc", "ip", 0},
	{"fgets", "ipip", 0},
	{"__filbuf", "ip", 0},
	{"__flsbuf", "iip", 0},
	{"ungetc", "iip", 0},
	{"gets", "pp", 0},
	{"fread", "upuup", 0},
	{"fwrite", "upuup", 0},
	{"fputs", "ipp", 0},
	{"puts", "ip", 0},
	{"getcwd", "ppu", 0},
	{"time", "ip", 0},
	{"bzero", "vpu", 0},
	{"fp_class_d", "id", FlagNoMem},
	{"ldexp", "ddi", FlagNoMem},
	{"__ll_mul", "lll", FlagNoMem},
	{"__ll_div", "lll", FlagNoMem},
	{"__ll_rem", "ljl", FlagNoMem},
	{"__ll_lshift", "llj", FlagNoMem},
	{"__ll_rshift", "llj", FlagNoMem},
	{"__ull_div", "jjj", FlagNoMem},
	{"__ull_rem", "jjj", FlagNoMem},
	{"__ull_rshift", "jjj", FlagNoMem},
	{"__d_to_ull", "jd", FlagNoMem},
	{"__d_to_ll", "ld", FlagNoMem},
	{"__f_to_ull", "jf", FlagNoMem},
	{"__f_to_ll", "lf", FlagNoMem},
	{"__ull_to_f", "fj", FlagNoMem},
	{"__ll_to_f", "fl", FlagNoMem},
	{"__ull_to_d", "dj", FlagNoMem},
	{"__ll_to_d", "dl", FlagNoMem},
	{"_exit", "vi", 0},
	{"_cleanup", "v", 0},
	{"_rld_new_interface", "pu", FlagVararg},
	{"_exithandle", "v", 0},
	{"_prctl", "ii", FlagVararg},
	{"_atod", "dpii", 0},
	{"pathconf", "ipi", 0},
	{"getenv", "pp", 0},
	{"gettxt", "ppp", 0},
	{"setlocale", "pip", 0},
	{"mmap", "ppuiiii", 0},
	{"munmap", "ipu", 0},
	{"mprotect", "ipui", 0},
	{"sysconf", "ii", 0},
	{"getpagesize", "i", 0},
	{"strerror", "pi", 0},
	{"ioctl", "iiu", FlagVararg},
	{"fcntl", "iii", FlagVararg},
	{"signal", "pit", 0},
	{"sigset", "pit", 0},
	{"get_fpc_csr", "i", 0},
	{"set_fpc_csr", "ii", 0},
	{"setjmp", "ip", 0},
	{"longjmp", "vpi", 0},
	{"tempnam", "ppp", 0},
	{"tmpnam", "pp", 0},
	{"mktemp", "pp", 0},
	{"mkstemp", "ip", 0},
	{"tmpfile", "p", 0},
	{"wait", "ip", 0},
	{"kill", "iii", 0},
	{"execlp", "ip", FlagVararg},
	{"execv", "ipp", 0},
	{"execvp", "ipp", 0},
	{"fork", "i", 0},
	{"system", "ip", 0},
	{"tsearch", "pppp", 0},
	{"tfind", "pppp", 0},
	{"qsort", "vpuut", 0},
	{"regcmp", "pp", FlagVararg},
	{"regex", "ppp", FlagVararg},
	{"__assert", "vppi", 0},
}

var byName map[string]ExternFunction

func init() {
	byName = make(map[string]ExternFunction, len(Table))
	for _, e := range Table {
		byName[e.Name] = e
	}
}

// Lookup returns the extern function descriptor for name, if known.
func Lookup(name string) (ExternFunction, bool) {
	e, ok := byName[name]
	return e, ok
}

// IsWide reports whether a type character occupies two O32 argument
// slots ($a_i/$a_i+1 or a pair of stack words): double and the 64-bit
// integer types.
func IsWide(c byte) bool {
	return c == 'd' || c == 'l' || c == 'j'
}

// IsFloat reports whether c is a floating-point type character.
func IsFloat(c byte) bool {
	return c == 'f' || c == 'd'
}

// ArgSlots returns the O32 argument-register/stack slot layout for an
// argument type string, honoring alignment rules: a wide type (double,
// long long) starting on an odd slot is pushed to the next even slot
// first. Slots 0-3 map to $a0-$a3; slots beyond 3 are stack words.
// Vararg functions are not special-cased here — the caller conservatively
// treats all four integer argument registers as live for those (see
// internal/liveness).
func ArgSlots(params string) []int {
	var slots []int
	next := 0
	for i := 0; i < len(params); i++ {
		c := params[i]
		if IsWide(c) {
			if next%2 != 0 {
				next++
			}
			slots = append(slots, next)
			next += 2
			continue
		}
		slots = append(slots, next)
		next++
	}
	return slots
}

// O32 floating-point register numbers used by ArgFloatRegs/the emitter:
// fa0 and fa2 are the paired double-wide FP argument registers
// ($f12/$f14), fv0 is the FP return register ($f0).
const (
	FA0 = 12
	FA2 = 14
	FV0 = 0
)

// ArgFloatRegs reports, for each argument in params (indexed the same
// way as ArgSlots), which FP argument register pair it is actually
// routed through instead of its ordinary integer ArgSlots slot, or -1
// when it isn't. O32 only ever passes a float or double through
// fa0/fa2, and only while every argument seen so far was itself a float
// or double and fewer than two FP argument slots have been spent
// ("only_floats_so_far"): the first non-floating argument, or a
// third-or-later leading float, falls through to the normal
// $a0-$a3/stack sequence ArgSlots computes instead.
func ArgFloatRegs(params string) []int {
	regs := make([]int, len(params))
	onlyFloatsSoFar := true
	posFloat := 0
	for i := 0; i < len(params); i++ {
		if !IsFloat(params[i]) {
			onlyFloatsSoFar = false
			regs[i] = -1
			continue
		}
		if onlyFloatsSoFar && posFloat < 4 {
			regs[i] = FA0 + posFloat
			posFloat += 2
		} else {
			regs[i] = -1
		}
	}
	return regs
}

// ParamTypes splits the argument portion of a type string into its
// characters, a convenience for callers that already stripped the
// leading return-type character.
func ParamTypes(args string) []byte {
	return []byte(args)
}

// TypeName renders a type character as a C type name, used by the emitter
// when synthesizing wrapper_<name> declarations.
func TypeName(c byte) string {
	switch c {
	case 'v':
		return "void"
	case 'i':
		return "int32_t"
	case 'u':
		return "uint32_t"
	case 'p':
		return "uintptr_t"
	case 'f':
		return "float"
	case 'd':
		return "double"
	case 'l':
		return "int64_t"
	case 'j':
		return "uint64_t"
	case 't':
		return "uintptr_t"
	default:
		return "uint32_t"
	}
}

// Signature renders a full C-style signature string, e.g. "int32_t (*)(uintptr_t, uint32_t)".
func Signature(e ExternFunction) string {
	var b strings.Builder
	b.WriteString(TypeName(e.Return()))
	b.WriteString(" (*)(")
	args := e.Args()
	for i := 0; i < len(args); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeName(args[i]))
	}
	b.WriteString(")")
	return b.String()
}
