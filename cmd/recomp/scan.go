package main

import (
	"flag"
	"fmt"
	"os"

	"recomp/internal/elfx"
)

// cmdScan prints the ELF/section/GOT summary component A recovers,
// without running any later pass — mirrors the teacher's `scan`
// subcommand's early-exit summary style.
func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: recomp scan <elf>")
	}

	ef, err := elfx.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer ef.Close()

	fmt.Fprintf(os.Stderr, "ELF: big-endian MIPS O32 executable, %d bytes\n", ef.FileSize())

	segs := ef.LoadSegments()
	fmt.Fprintf(os.Stderr, "PT_LOAD segments: %d\n", len(segs))
	for _, s := range segs {
		fmt.Fprintf(os.Stderr, "  VA=0x%08x Filesz=0x%08x Memsz=0x%08x\n",
			s.Vaddr, s.Filesz, s.Memsz)
	}

	fmt.Printf("\n.text  VA=0x%08x  size=0x%x\n", ef.Text.VAddr, len(ef.Text.Bytes))
	fmt.Printf(".rodata VA=0x%08x size=0x%x\n", ef.RoData.VAddr, len(ef.RoData.Bytes))
	fmt.Printf(".data  VA=0x%08x  size=0x%x\n", ef.Data.VAddr, len(ef.Data.Bytes))
	fmt.Printf(".bss   VA=0x%08x  size=0x%x\n", ef.BSS.VAddr, len(ef.BSS.Bytes))

	if ef.GOT != nil {
		fmt.Printf("\nGOT: gp=0x%08x gp_adj=0x%x locals=%d globals=%d\n",
			ef.GOT.GPValue, ef.GOT.GPValueAdj, len(ef.GOT.Locals), ef.GOT.DynSymNo-ef.GOT.FirstSym)
	}

	syms, err := ef.Symbols()
	if err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	nFuncs := 0
	for _, s := range syms {
		if s.Func {
			nFuncs++
		}
	}
	fmt.Printf("\nSymbols: %d total, %d functions\n", len(syms), nFuncs)

	if common, err := ef.CommonSymbols(); err == nil && len(common) > 0 {
		fmt.Printf("Common-block (SHN_MIPS_ACOMMON) symbols: %d\n", len(common))
		for _, s := range common {
			fmt.Printf("  %-32s size=0x%x\n", s.Name, s.Size)
		}
	}

	return nil
}
