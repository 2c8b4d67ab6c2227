// Command recomp turns a big-endian MIPS O32 ELF executable into a
// portable pseudo-C program that preserves its observable behavior.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = cmdScan(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "emit":
		err = cmdEmit(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		// No subcommand recognized: treat os.Args[1:] as the primary
		// form, `recomp [--conservative] <elf>`.
		err = cmdEmit(os.Args[1:])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `recomp — MIPS O32 static binary recompiler

Usage:
  recomp [--conservative] <elf>            Recompile to pseudo-C on stdout
  recomp emit   [--conservative] <elf> [--out file]   Same, explicit form
  recomp scan   <elf>                      Print ELF/section/GOT summary
  recomp disasm <elf> [--out dir]          Per-function annotated disassembly
  recomp graph  <elf> --out dir            DOT call graph and per-function CFGs

Flags:
  --conservative   Keep $s0-$s7/$fp in file-scope statics instead of
                    per-function locals in the emitted program
  --strict         Fail on the first jr that matches no jump-table shape
                    instead of recording it as a diagnostic and leaving the
                    site unpatched
  --out <dir|file> Output destination; stdout when omitted
`)
}
