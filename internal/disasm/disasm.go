// Package disasm decodes ARM64 and x86-64 machine code into program
// instructions whose operands are reduced to coarse kinds.
package disasm

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"patchdiff/internal/program"
)

// Arch selects the instruction set.
type Arch string

// Supported architectures.
const (
	ArchARM64 Arch = "arm64"
	ArchAMD64 Arch = "amd64"
)

var ErrUnsupportedArch = errors.New("disasm: unsupported architecture")

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint64 // VA of the first byte of code
	MaxSteps int    // maximum instructions to decode; 0 = 10M
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Decode disassembles code for arch. Undecodable ARM64 words become
// ".word" and undecodable x86 bytes become a one-byte "(bad)", so a
// corrupt region never aborts the decode.
func Decode(arch Arch, code []byte, opts Options) ([]program.Instruction, error) {
	switch arch {
	case ArchARM64:
		return decodeARM64(code, opts), nil
	case ArchAMD64:
		return decodeAMD64(code, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArch, arch)
	}
}

func decodeARM64(code []byte, opts Options) []program.Instruction {
	n := min(len(code)/4, opts.effectiveMax())
	result := make([]program.Instruction, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		addr := opts.BaseAddr + uint64(off)

		inst, err := arm64asm.Decode(code[off : off+4])
		if err != nil {
			result = append(result, program.Instruction{Address: addr, Mnemonic: ".word"})
			continue
		}
		pi := program.Instruction{
			Address:  addr,
			Mnemonic: strings.ToLower(inst.Op.String()),
		}
		for _, arg := range inst.Args {
			if arg == nil {
				break
			}
			pi.Operands = append(pi.Operands, arm64Kind(arg))
		}
		result = append(result, pi)
	}
	return result
}

func arm64Kind(arg arm64asm.Arg) program.OperandKind {
	switch arg.(type) {
	case arm64asm.Reg, arm64asm.RegSP, arm64asm.RegExtshiftAmount,
		arm64asm.RegisterWithArrangement, arm64asm.RegisterWithArrangementAndIndex:
		return program.OperandReg
	case arm64asm.Imm, arm64asm.Imm64, arm64asm.ImmShift, arm64asm.Imm_fp:
		return program.OperandImm
	case arm64asm.MemImmediate, arm64asm.MemExtend:
		return program.OperandMem
	case arm64asm.PCRel:
		return program.OperandRel
	default:
		return program.OperandOther
	}
}

func decodeAMD64(code []byte, opts Options) []program.Instruction {
	maxSteps := opts.effectiveMax()
	var result []program.Instruction
	for off := 0; off < len(code) && len(result) < maxSteps; {
		addr := opts.BaseAddr + uint64(off)
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil || inst.Len == 0 {
			result = append(result, program.Instruction{Address: addr, Mnemonic: "(bad)"})
			off++
			continue
		}
		pi := program.Instruction{
			Address:  addr,
			Mnemonic: strings.ToLower(inst.Op.String()),
		}
		for _, arg := range inst.Args {
			if arg == nil {
				break
			}
			pi.Operands = append(pi.Operands, x86Kind(arg))
		}
		result = append(result, pi)
		off += inst.Len
	}
	return result
}

func x86Kind(arg x86asm.Arg) program.OperandKind {
	switch arg.(type) {
	case x86asm.Reg:
		return program.OperandReg
	case x86asm.Imm:
		return program.OperandImm
	case x86asm.Mem:
		return program.OperandMem
	case x86asm.Rel:
		return program.OperandRel
	default:
		return program.OperandOther
	}
}

// Format renders instructions as stable text, one per line:
// <addr>  <mnemonic> <operand kinds>
func Format(insts []program.Instruction) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  %s\n", inst.Address, inst.String())
	}
	return b.String()
}
