package disasm

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"patchdiff/internal/program"
)

func arm64Words(words ...uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func TestDecodeARM64NOP(t *testing.T) {
	// ARM64 NOP = 0xd503201f
	insts, err := Decode(ArchARM64, arm64Words(0xd503201f, 0xd503201f), Options{BaseAddr: 0x1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 2 {
		t.Fatalf("got %d instructions, want 2", len(insts))
	}
	if insts[0].Address != 0x1000 || insts[1].Address != 0x1004 {
		t.Errorf("addrs = 0x%x, 0x%x", insts[0].Address, insts[1].Address)
	}
	if insts[0].Mnemonic != "nop" || len(insts[0].Operands) != 0 {
		t.Errorf("got %q, want nop", insts[0].String())
	}
}

func TestDecodeARM64Operands(t *testing.T) {
	// ret = 0xd65f03c0, bl #0 = 0x94000000, add x0, x1, #1 = 0x91000420
	insts, err := Decode(ArchARM64, arm64Words(0xd65f03c0, 0x94000000, 0x91000420), Options{})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		mnemonic string
		last     program.OperandKind
	}{
		{"ret", program.OperandReg},
		{"bl", program.OperandRel},
		{"add", program.OperandImm},
	}
	for i, tt := range tests {
		got := insts[i]
		if got.Mnemonic != tt.mnemonic {
			t.Errorf("inst %d: mnemonic %q, want %q", i, got.Mnemonic, tt.mnemonic)
			continue
		}
		if len(got.Operands) == 0 || got.Operands[len(got.Operands)-1] != tt.last {
			t.Errorf("inst %d (%s): operands %v, want last %q", i, got.Mnemonic, got.Operands, tt.last)
		}
	}
}

func TestDecodeARM64RelocatedBranchSameKey(t *testing.T) {
	// bl #0x100 vs bl #0x2000 differ only in target.
	a, _ := Decode(ArchARM64, arm64Words(0x94000040), Options{BaseAddr: 0x1000})
	b, _ := Decode(ArchARM64, arm64Words(0x94000800), Options{BaseAddr: 0x9000})
	if a[0].String() != b[0].String() {
		t.Errorf("%q != %q", a[0].String(), b[0].String())
	}
}

func TestDecodeARM64MaxStepsAndShort(t *testing.T) {
	data := make([]byte, 400)
	for i := 0; i < 100; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], 0xd503201f)
	}
	insts, _ := Decode(ArchARM64, data, Options{MaxSteps: 10})
	if len(insts) != 10 {
		t.Fatalf("got %d instructions, want 10", len(insts))
	}

	insts, _ = Decode(ArchARM64, []byte{0x01, 0x02}, Options{})
	if len(insts) != 0 {
		t.Fatalf("got %d instructions for 2 bytes", len(insts))
	}
}

func TestDecodeAMD64(t *testing.T) {
	code := []byte{
		0x55,             // push rbp
		0x48, 0x89, 0xe5, // mov rbp, rsp
		0xe8, 0x00, 0x00, 0x00, 0x00, // call rel32
		0xc3, // ret
	}
	insts, err := Decode(ArchAMD64, code, Options{BaseAddr: 0x401000})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"push reg", "mov reg,reg", "call rel", "ret"}
	if len(insts) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(insts), len(want))
	}
	for i, w := range want {
		if got := insts[i].String(); got != w {
			t.Errorf("inst %d = %q, want %q", i, got, w)
		}
	}
	if insts[1].Address != 0x401001 || insts[3].Address != 0x401009 {
		t.Errorf("addresses: 0x%x 0x%x", insts[1].Address, insts[3].Address)
	}
}

func TestDecodeAMD64Empty(t *testing.T) {
	insts, err := Decode(ArchAMD64, nil, Options{})
	if err != nil || len(insts) != 0 {
		t.Fatalf("got %v, %v", insts, err)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	if _, err := Decode("mips", []byte{0}, Options{}); !errors.Is(err, ErrUnsupportedArch) {
		t.Fatalf("err = %v", err)
	}
}

func TestFormat(t *testing.T) {
	insts, _ := Decode(ArchARM64, arm64Words(0xd503201f), Options{BaseAddr: 0x1000})
	text := Format(insts)
	if !strings.Contains(text, "0x00001000") || !strings.Contains(text, "nop") {
		t.Errorf("unexpected output: %s", text)
	}
	if Format(insts) != text {
		t.Error("non-deterministic output")
	}
}
