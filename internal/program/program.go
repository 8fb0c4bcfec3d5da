// Package program is the narrow view of a binary that correlation needs:
// functions with a name, an entry address, and an instruction stream.
package program

import "strings"

// OperandKind is the coarse class of an instruction operand.
// Concrete registers, immediates and addresses are deliberately absent.
type OperandKind string

// Operand kinds shared by all decoders.
const (
	OperandReg   OperandKind = "reg"
	OperandImm   OperandKind = "imm"
	OperandMem   OperandKind = "mem"
	OperandRel   OperandKind = "rel"
	OperandOther OperandKind = "other"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Address  uint64        `json:"address,omitempty"` // display only
	Mnemonic string        `json:"mnemonic"`
	Operands []OperandKind `json:"operands,omitempty"`
}

// String renders the instruction without its address, e.g. "mov reg,mem".
func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Mnemonic
	}
	var b strings.Builder
	b.WriteString(i.Mnemonic)
	b.WriteByte(' ')
	for n, op := range i.Operands {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(op))
	}
	return b.String()
}

// Function is a function owned by one program. Implementations must be
// comparable (typically a pointer) and immutable for the duration of a
// correlation run; both properties let callers memoize per function.
type Function interface {
	Name() string
	Address() uint64
	// Walk visits the function's instructions in storage order. An error
	// from the underlying instruction source stops the walk and is returned.
	Walk(visit func(Instruction)) error
}

// Program enumerates the functions whose entry lies in set.
type Program interface {
	Functions(set AddressSet) ([]Function, error)
}
