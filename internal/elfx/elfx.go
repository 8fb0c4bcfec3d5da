// Package elfx loads ELF binaries and exposes their symbolized functions as
// a program.Program.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"patchdiff/internal/disasm"
	"patchdiff/internal/program"
)

var (
	ErrNotELF             = errors.New("elfx: not an ELF file")
	ErrNot64Bit           = errors.New("elfx: not 64-bit ELF")
	ErrUnsupportedMachine = errors.New("elfx: unsupported machine")
	ErrNoSymbols          = errors.New("elfx: no symbol table")
	ErrNoSegment          = errors.New("elfx: no PT_LOAD segment covers address")
	ErrTruncated          = errors.New("elfx: function extends past end of file")
)

// File wraps a debug/elf.File with the helpers correlation needs.
type File struct {
	ELF    *elf.File
	raw    io.ReaderAt
	closer io.Closer
	size   int64
	arch   disasm.Arch
}

// Open opens an ELF file and validates it is a 64-bit ARM64 or x86-64 image.
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

	ef, err := NewFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	ef.closer = f
	return ef, nil
}

// NewFile parses an ELF image from r. The caller keeps ownership of r.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	if ef.Class != elf.ELFCLASS64 {
		ef.Close()
		return nil, ErrNot64Bit
	}
	var arch disasm.Arch
	switch ef.Machine {
	case elf.EM_AARCH64:
		arch = disasm.ArchARM64
	case elf.EM_X86_64:
		arch = disasm.ArchAMD64
	default:
		ef.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMachine, ef.Machine)
	}

	return &File{ELF: ef, raw: r, size: size, arch: arch}, nil
}

// Close releases resources.
func (f *File) Close() error {
	err := f.ELF.Close()
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// Arch returns the instruction set of the image.
func (f *File) Arch() disasm.Arch { return f.arch }

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Filesz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads n bytes starting at the given virtual address. The
// result is shorter than n when the file ends first.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// Symbols returns the defined, sized STT_FUNC symbols from .symtab, or from
// .dynsym when the image is stripped.
func (f *File) Symbols() ([]elf.Symbol, error) {
	syms, err := f.ELF.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		syms, err = f.ELF.DynamicSymbols()
	}
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, ErrNoSymbols
	}
	if err != nil {
		return nil, fmt.Errorf("elfx: symbols: %w", err)
	}

	var funcs []elf.Symbol
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 || s.Section == elf.SHN_UNDEF {
			continue
		}
		funcs = append(funcs, s)
	}
	return funcs, nil
}

// Functions implements program.Program. Each entry address yields one
// function named by its first symbol; functions are ordered by address.
func (f *File) Functions(set program.AddressSet) ([]program.Function, error) {
	syms, err := f.Symbols()
	if err != nil {
		return nil, err
	}
	byAddr := make(map[uint64]*Function, len(syms))
	var out []*Function
	for _, s := range syms {
		if !set.Contains(s.Value) {
			continue
		}
		if _, dup := byAddr[s.Value]; dup {
			continue
		}
		fn := &Function{file: f, name: s.Name, addr: s.Value, size: s.Size}
		byAddr[s.Value] = fn
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })

	fns := make([]program.Function, len(out))
	for i, fn := range out {
		fns[i] = fn
	}
	return fns, nil
}

// Function is a symbolized function of a File.
type Function struct {
	file *File
	name string
	addr uint64
	size uint64
}

var _ program.Function = (*Function)(nil)

func (fn *Function) Name() string    { return fn.name }
func (fn *Function) Address() uint64 { return fn.addr }
func (fn *Function) Size() uint64    { return fn.size }

// Instructions reads and decodes the function body.
func (fn *Function) Instructions() ([]program.Instruction, error) {
	code, err := fn.file.ReadBytesAtVA(fn.addr, int(fn.size))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.name, err)
	}
	if uint64(len(code)) < fn.size {
		return nil, fmt.Errorf("%w: %s@0x%x size %d", ErrTruncated, fn.name, fn.addr, fn.size)
	}
	return disasm.Decode(fn.file.arch, code, disasm.Options{BaseAddr: fn.addr})
}

// Walk implements program.Function.
func (fn *Function) Walk(visit func(program.Instruction)) error {
	insts, err := fn.Instructions()
	if err != nil {
		return err
	}
	for _, inst := range insts {
		visit(inst)
	}
	return nil
}
