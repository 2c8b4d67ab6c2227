// Package elfx provides ELF loading helpers for big-endian MIPS O32
// executables produced by the IDO/GCC toolchains this recompiler targets.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNotELF        = errors.New("elfx: not an ELF file")
	ErrNotMIPS       = errors.New("elfx: not big-endian MIPS (EM_MIPS)")
	ErrNotExec       = errors.New("elfx: not an executable (ET_EXEC)")
	ErrStripped      = errors.New("elfx: missing section headers; stripped binaries are not supported")
	ErrNoText        = errors.New("elfx: missing .text section")
	ErrNoSymtab      = errors.New("elfx: missing .symtab or .dynsym section")
	ErrNoReginfo     = errors.New("elfx: missing .reginfo section")
	ErrNoDynamic     = errors.New("elfx: missing .dynamic section")
	ErrNoGOT         = errors.New("elfx: missing .got section")
	ErrBadGOT        = errors.New("elfx: PT_DYNAMIC present without DT_PLTGOT")
	ErrGPAdjustRange = errors.New("elfx: gp adjustment does not fit in 16 bits")
	ErrNoSegment     = errors.New("elfx: no PT_LOAD segment covers address")
)

// MIPS-specific section types and special section indexes that the
// debug/elf package does not know about.
const (
	dtMIPSLocalGOTNo = 0x7000000a
	dtMIPSGOTSym     = 0x70000013
	dtMIPSSymTabNo   = 0x70000011

	// SHNMIPSAComm, SHNMIPSText and SHNMIPSData are the special section
	// indexes MIPS reserves in st_shndx; debug/elf's elf.SectionIndex
	// constants don't name them.
	SHNMIPSAComm = 0xff00
	SHNMIPSText  = 0xff01
	SHNMIPSData  = 0xff03
)

// File wraps a debug/elf.File with the section and dynamic-linking views
// this recompiler needs from a MIPS O32 static executable.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64

	Text   Section
	RoData Section
	Data   Section
	BSS    Section

	// GOT holds the resolved GOT layout when the binary carries a
	// .dynamic/.reginfo/.got triple (PIC executables under this ABI
	// always do, since the runtime startup stub needs $gp).
	GOT *GOTInfo
}

// Section describes a loaded section's file bytes and virtual address.
type Section struct {
	VAddr uint64
	Bytes []byte
}

func (s Section) Contains(va uint64) bool {
	return len(s.Bytes) > 0 && va >= s.VAddr && va < s.VAddr+uint64(len(s.Bytes))
}

// GOTInfo is the resolved global-offset-table layout needed to rewrite
// $gp-relative memory operands back into absolute addresses.
type GOTInfo struct {
	GPValue    uint32 // value $gp holds at runtime
	GPValueAdj uint32 // gp_value - got_start; must fit in 16 bits
	Locals     []uint32
	LocalGOTNo uint32
	FirstSym   uint32 // index of first dynsym entry with a GOT slot
	DynSymNo   uint32 // DT_MIPS_SYMTABNO; authoritative dynsym count
	Raw        []uint32
}

// Word returns the i'th 4-byte word of the .got section, used by the
// loader to resolve each dynsym's GOT-global entry (at LocalGOTNo+i).
func (g *GOTInfo) Word(i int) uint32 {
	if i < 0 || i >= len(g.Raw) {
		return 0
	}
	return g.Raw[i]
}

// Symbol is a named function or object symbol pulled from .dynsym.
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
	Func  bool
	Kind  uint16 // raw st_shndx, used to distinguish SHN_MIPS_ACOMMON etc.
}

// Open opens path and validates it is a big-endian MIPS ET_EXEC ELF.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	if ef.Class != elf.ELFCLASS32 || ef.ByteOrder != binary.BigEndian {
		ef.Close()
		return nil, ErrNotMIPS
	}
	if ef.Machine != elf.EM_MIPS {
		ef.Close()
		return nil, ErrNotMIPS
	}
	if ef.Type != elf.ET_EXEC {
		ef.Close()
		return nil, ErrNotExec
	}
	if len(ef.Sections) == 0 {
		ef.Close()
		return nil, ErrStripped
	}

	file := &File{ELF: ef, raw: f, size: info.Size()}
	if err := file.loadSections(); err != nil {
		ef.Close()
		return nil, err
	}
	if err := file.loadGOT(); err != nil {
		ef.Close()
		return nil, err
	}
	return file, nil
}

func (f *File) Close() error { return f.ELF.Close() }

func (f *File) FileSize() int64 { return f.size }

func (f *File) section(name string) *elf.Section {
	return f.ELF.Section(name)
}

func (f *File) loadSections() error {
	text := f.section(".text")
	if text == nil {
		return ErrNoText
	}
	tb, err := text.Data()
	if err != nil {
		return fmt.Errorf("elfx: read .text: %w", err)
	}
	f.Text = Section{VAddr: text.Addr, Bytes: tb}

	if s := f.section(".rodata"); s != nil {
		b, err := s.Data()
		if err != nil {
			return fmt.Errorf("elfx: read .rodata: %w", err)
		}
		f.RoData = Section{VAddr: s.Addr, Bytes: b}
	}
	if s := f.section(".data"); s != nil {
		b, err := s.Data()
		if err != nil {
			return fmt.Errorf("elfx: read .data: %w", err)
		}
		f.Data = Section{VAddr: s.Addr, Bytes: b}
	}
	if s := f.section(".bss"); s != nil {
		f.BSS = Section{VAddr: s.Addr, Bytes: make([]byte, s.Size)}
	}

	if f.section(".symtab") == nil && f.section(".dynsym") == nil {
		return ErrNoSymtab
	}
	return nil
}

// loadGOT resolves the .reginfo/.dynamic/.got triple into a GOTInfo. It is
// a no-op (GOT left nil) when the binary has no .dynsym, mirroring the
// original loader's dynsym-gated GOT resolution.
func (f *File) loadGOT() error {
	if f.section(".dynsym") == nil {
		return nil
	}

	reginfo := f.section(".reginfo")
	if reginfo == nil {
		return ErrNoReginfo
	}
	dynamic := f.section(".dynamic")
	if dynamic == nil {
		return ErrNoDynamic
	}
	got := f.section(".got")
	if got == nil {
		return ErrNoGOT
	}

	reginfoBytes, err := reginfo.Data()
	if err != nil {
		return fmt.Errorf("elfx: read .reginfo: %w", err)
	}
	// Elf32_RegInfo: five 4-byte masks, then ri_gp_value at offset 20.
	if len(reginfoBytes) < 24 {
		return fmt.Errorf("elfx: .reginfo truncated")
	}
	gpValue := f.ELF.ByteOrder.Uint32(reginfoBytes[20:24])

	gotBytes, err := got.Data()
	if err != nil {
		return fmt.Errorf("elfx: read .got: %w", err)
	}

	gotStart, localGOTNo, firstGOTSym, symTabNo, err := readDynamicMIPSTags(dynamic, f.ELF.ByteOrder)
	if err != nil {
		return err
	}
	if gotStart == 0 {
		return ErrBadGOT
	}

	gpAdj := gpValue - gotStart
	if gpAdj >= 0x10000 {
		return ErrGPAdjustRange
	}

	locals := make([]uint32, localGOTNo)
	for i := range locals {
		off := i * 4
		if off+4 > len(gotBytes) {
			break
		}
		locals[i] = f.ELF.ByteOrder.Uint32(gotBytes[off : off+4])
	}

	raw := make([]uint32, len(gotBytes)/4)
	for i := range raw {
		raw[i] = f.ELF.ByteOrder.Uint32(gotBytes[i*4 : i*4+4])
	}

	f.GOT = &GOTInfo{
		GPValue:    gpValue,
		GPValueAdj: gpAdj,
		Locals:     locals,
		LocalGOTNo: localGOTNo,
		FirstSym:   firstGOTSym,
		DynSymNo:   symTabNo,
		Raw:        raw,
	}
	return nil
}

// readDynamicMIPSTags walks the raw .dynamic entries for the MIPS-specific
// tags debug/elf does not expose (DT_PLTGOT is generic; the rest are not).
func readDynamicMIPSTags(dynamic *elf.Section, order binary.ByteOrder) (gotStart, localGOTNo, firstGOTSym, symTabNo uint32, err error) {
	data, err := dynamic.Data()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("elfx: read .dynamic: %w", err)
	}
	const entsz = 8 // Elf32_Dyn: d_tag (4) + d_un (4)
	for off := 0; off+entsz <= len(data); off += entsz {
		tag := order.Uint32(data[off : off+4])
		val := order.Uint32(data[off+4 : off+8])
		switch tag {
		case uint32(elf.DT_PLTGOT):
			gotStart = val
		case dtMIPSLocalGOTNo:
			localGOTNo = val
		case dtMIPSGOTSym:
			firstGOTSym = val
		case dtMIPSSymTabNo:
			symTabNo = val
		}
	}
	return gotStart, localGOTNo, firstGOTSym, symTabNo, nil
}

// Symbols returns the dynamic (or static) function/object symbols used to
// seed labels, functions, and the main/_mcount addresses.
func (f *File) Symbols() ([]Symbol, error) {
	raw, err := f.ELF.DynamicSymbols()
	if err != nil || len(raw) == 0 {
		raw, err = f.ELF.Symbols()
		if err != nil {
			return nil, fmt.Errorf("elfx: no symbol table: %w", err)
		}
	}

	out := make([]Symbol, 0, len(raw))
	for _, s := range raw {
		out = append(out, Symbol{
			Name:  s.Name,
			Value: uint32(s.Value),
			Size:  uint32(s.Size),
			Func:  elf.ST_TYPE(s.Info) == elf.STT_FUNC,
			Kind:  uint16(s.Section),
		})
	}
	return out, nil
}

// CommonSymbols returns every symbol allocated in the MIPS common block
// (SHN_MIPS_ACOMMON) rather than a fixed section — uninitialized globals
// an older IDO 5.3 link leaves unplaced until the static linker merges
// them into .bss. parse_elf tracks these separately so they are never
// mistaken for .data/.rodata storage; this is the same distinction, kept
// available for callers (notably the `recomp scan` debug subcommand) that
// want to report on them without re-deriving st_shndx themselves.
func (f *File) CommonSymbols() ([]Symbol, error) {
	all, err := f.Symbols()
	if err != nil {
		return nil, err
	}
	var out []Symbol
	for _, s := range all {
		if s.Kind == SHNMIPSAComm {
			out = append(out, s)
		}
	}
	return out, nil
}

// VAToFileOffset converts a virtual address to a file offset via PT_LOAD
// segments, used by the pointer harvester to validate candidate addresses.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			return va - p.Vaddr + p.Off, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
}

// LoadSegments returns all PT_LOAD segments.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
		})
	}
	return segs
}
