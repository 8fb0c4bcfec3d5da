// Package elfxtest builds minimal ELF images for tests.
package elfxtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Func is one function body for Build.
type Func struct {
	Name string
	Code []byte
}

const textOffset = 0x100

// Build assembles a minimal little-endian ELF64 executable with a single
// PT_LOAD segment, a .text section starting at textAddr holding the
// functions back to back, and a .symtab naming them.
// textAddr must be at least 0x100.
func Build(machine elf.Machine, textAddr uint64, funcs []Func) []byte {
	var text, strtab, symtab bytes.Buffer
	strtab.WriteByte(0)
	le := binary.LittleEndian

	binary.Write(&symtab, le, elf.Sym64{})
	for _, fn := range funcs {
		name := uint32(strtab.Len())
		strtab.WriteString(fn.Name)
		strtab.WriteByte(0)
		binary.Write(&symtab, le, elf.Sym64{
			Name:  name,
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: 1,
			Value: textAddr + uint64(text.Len()),
			Size:  uint64(len(fn.Code)),
		})
		text.Write(fn.Code)
	}
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")

	align8 := func(n int) int { return (n + 7) &^ 7 }
	textOff := textOffset
	symOff := align8(textOff + text.Len())
	strOff := symOff + symtab.Len()
	shstrOff := strOff + strtab.Len()
	shOff := align8(shstrOff + len(shstrtab))
	total := shOff + 5*64

	var out bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     textAddr,
		Phoff:     64,
		Shoff:     uint64(shOff),
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
		Shentsize: 64,
		Shnum:     5,
		Shstrndx:  4,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.Write(&out, le, hdr)

	binary.Write(&out, le, elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    0,
		Vaddr:  textAddr - textOffset,
		Paddr:  textAddr - textOffset,
		Filesz: uint64(total),
		Memsz:  uint64(total),
		Align:  0x1000,
	})

	pad := func(to int) {
		for out.Len() < to {
			out.WriteByte(0)
		}
	}
	pad(textOff)
	out.Write(text.Bytes())
	pad(symOff)
	out.Write(symtab.Bytes())
	out.Write(strtab.Bytes())
	out.Write(shstrtab)
	pad(shOff)

	sections := []elf.Section64{
		{},
		{
			Name: 1, Type: uint32(elf.SHT_PROGBITS),
			Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr:  textAddr, Off: uint64(textOff), Size: uint64(text.Len()), Addralign: 4,
		},
		{
			Name: 7, Type: uint32(elf.SHT_SYMTAB),
			Off: uint64(symOff), Size: uint64(symtab.Len()),
			Link: 3, Info: 1, Addralign: 8, Entsize: elf.Sym64Size,
		},
		{Name: 15, Type: uint32(elf.SHT_STRTAB), Off: uint64(strOff), Size: uint64(strtab.Len()), Addralign: 1},
		{Name: 23, Type: uint32(elf.SHT_STRTAB), Off: uint64(shstrOff), Size: uint64(len(shstrtab)), Addralign: 1},
	}
	for _, sh := range sections {
		binary.Write(&out, le, sh)
	}
	return out.Bytes()
}
