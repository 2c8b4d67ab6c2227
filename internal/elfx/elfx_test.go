package elfx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// minimalELF assembles a tiny big-endian MIPS32 ET_EXEC with a .text
// section and a .symtab/.strtab pair carrying one function symbol named
// "main". No .dynsym/.got/.reginfo/.dynamic — exercises the non-PIC
// loading path.
func minimalELF() ([]byte, error) {
	const (
		ehdrSize = 52
		shdrSize = 40
		symSize  = 16
	)

	text := []byte{0, 0, 0, 0, 0, 0, 0, 0} // two NOPs
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")
	strtab := []byte("\x00main\x00")

	var sym bytes.Buffer
	binary.Write(&sym, binary.BigEndian, uint32(1))      // st_name -> "main"
	binary.Write(&sym, binary.BigEndian, uint32(0x1000)) // st_value
	binary.Write(&sym, binary.BigEndian, uint32(8))      // st_size
	sym.WriteByte(0x12)                             // st_info: STT_FUNC, STB_GLOBAL
	sym.WriteByte(0)                                // st_other
	binary.Write(&sym, binary.BigEndian, uint16(1)) // st_shndx = .text section index

	nullSym := make([]byte, symSize)

	textOff := uint32(ehdrSize)
	symtabOff := textOff + uint32(len(text))
	strtabOff := symtabOff + uint32(len(nullSym)+sym.Len())
	shstrtabOff := strtabOff + uint32(len(strtab))
	shoff := shstrtabOff + uint32(len(shstrtab))

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F'})
	buf.WriteByte(1) // ELFCLASS32
	buf.WriteByte(2) // ELFDATA2MSB
	buf.WriteByte(1) // EV_CURRENT
	buf.Write(make([]byte, 9))

	binary.Write(&buf, binary.BigEndian, uint16(2))        // e_type = ET_EXEC
	binary.Write(&buf, binary.BigEndian, uint16(8))        // e_machine = EM_MIPS
	binary.Write(&buf, binary.BigEndian, uint32(1))        // e_version
	binary.Write(&buf, binary.BigEndian, uint32(0x1000))   // e_entry
	binary.Write(&buf, binary.BigEndian, uint32(0))        // e_phoff
	binary.Write(&buf, binary.BigEndian, shoff)            // e_shoff
	binary.Write(&buf, binary.BigEndian, uint32(0))        // e_flags
	binary.Write(&buf, binary.BigEndian, uint16(ehdrSize)) // e_ehsize
	binary.Write(&buf, binary.BigEndian, uint16(0))        // e_phentsize
	binary.Write(&buf, binary.BigEndian, uint16(0))        // e_phnum
	binary.Write(&buf, binary.BigEndian, uint16(shdrSize)) // e_shentsize
	binary.Write(&buf, binary.BigEndian, uint16(5))        // e_shnum
	binary.Write(&buf, binary.BigEndian, uint16(4))        // e_shstrndx

	if buf.Len() != ehdrSize {
		return nil, fmt.Errorf("ehdr size = %d, want %d", buf.Len(), ehdrSize)
	}

	buf.Write(text)
	buf.Write(nullSym)
	buf.Write(sym.Bytes())
	buf.Write(strtab)
	buf.Write(shstrtab)

	writeShdr := func(name, typ, link, info, off, size, entsize, addr uint32) {
		binary.Write(&buf, binary.BigEndian, name)
		binary.Write(&buf, binary.BigEndian, typ)
		binary.Write(&buf, binary.BigEndian, uint32(0)) // flags
		binary.Write(&buf, binary.BigEndian, addr)
		binary.Write(&buf, binary.BigEndian, off)
		binary.Write(&buf, binary.BigEndian, size)
		binary.Write(&buf, binary.BigEndian, link)
		binary.Write(&buf, binary.BigEndian, info)
		binary.Write(&buf, binary.BigEndian, uint32(4)) // addralign
		binary.Write(&buf, binary.BigEndian, entsize)
	}

	nameOf := func(s string) uint32 {
		return uint32(bytes.Index(shstrtab, []byte(s+"\x00")))
	}

	writeShdr(0, 0, 0, 0, 0, 0, 0, 0) // SHT_NULL
	writeShdr(nameOf(".text"), 1, 0, 0, textOff, uint32(len(text)), 0, 0x1000)
	writeShdr(nameOf(".symtab"), 2, 3, 1, symtabOff, uint32(len(nullSym)+sym.Len()), symSize, 0)
	writeShdr(nameOf(".strtab"), 3, 0, 0, strtabOff, uint32(len(strtab)), 0, 0)
	writeShdr(nameOf(".shstrtab"), 3, 0, 0, shstrtabOff, uint32(len(shstrtab)), 0, 0)

	return buf.Bytes(), nil
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func mustMinimalELF(t *testing.T) []byte {
	t.Helper()
	data, err := minimalELF()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestOpenRejectsNonELF(t *testing.T) {
	p := writeTemp(t, []byte("not an ELF file at all"))
	if _, err := Open(p); err == nil {
		t.Fatal("expected error for non-ELF file")
	}
}

func TestOpenAcceptsMinimalMIPS(t *testing.T) {
	p := writeTemp(t, mustMinimalELF(t))
	f, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if len(f.Text.Bytes) != 8 {
		t.Errorf("text len = %d, want 8", len(f.Text.Bytes))
	}
	if f.Text.VAddr != 0x1000 {
		t.Errorf("text vaddr = 0x%x, want 0x1000", f.Text.VAddr)
	}
	if f.GOT != nil {
		t.Error("GOT should be nil without .dynsym")
	}
}

func TestOpenRejectsWrongMachine(t *testing.T) {
	data := mustMinimalELF(t)
	// e_machine is at offset 18, big-endian uint16; flip EM_MIPS(8) to EM_ARM(40).
	binary.BigEndian.PutUint16(data[18:20], 40)
	p := writeTemp(t, data)
	if _, err := Open(p); err == nil {
		t.Fatal("expected error for non-MIPS machine")
	}
}

func TestSymbols(t *testing.T) {
	p := writeTemp(t, mustMinimalELF(t))
	f, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	var found bool
	for _, s := range syms {
		if s.Name == "main" && s.Value == 0x1000 && s.Func {
			found = true
		}
	}
	if !found {
		t.Errorf("main symbol not found in %+v", syms)
	}
}

func TestVAToFileOffsetNoSegments(t *testing.T) {
	p := writeTemp(t, mustMinimalELF(t))
	f, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	// No PT_LOAD segments in this fixture; any VA should fail.
	if _, err := f.VAToFileOffset(0x1000); err == nil {
		t.Fatal("expected error with no PT_LOAD segments")
	}
}

func FuzzOpen(f *testing.F) {
	seed, err := minimalELF()
	if err == nil {
		f.Add(seed)
	}
	f.Add([]byte("not an elf at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.bin")
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return
		}
		ef.FileSize()
		ef.LoadSegments()
		ef.Symbols()
		ef.Close()
	})
}
