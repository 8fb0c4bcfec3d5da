package program

import "sort"

// Func is an in-memory function. It is the JSON form accepted by the CLI
// and HTTP service, and the fixture type used by tests.
type Func struct {
	Label string        `json:"name"`
	Entry uint64        `json:"address"`
	Insts []Instruction `json:"instructions"`
}

func (f *Func) Name() string    { return f.Label }
func (f *Func) Address() uint64 { return f.Entry }

func (f *Func) Walk(visit func(Instruction)) error {
	for _, inst := range f.Insts {
		visit(inst)
	}
	return nil
}

// Mnemonics builds a Func whose instructions carry only mnemonics.
func Mnemonics(name string, addr uint64, mnemonics ...string) *Func {
	f := &Func{Label: name, Entry: addr}
	for i, m := range mnemonics {
		f.Insts = append(f.Insts, Instruction{Address: addr + uint64(i)*4, Mnemonic: m})
	}
	return f
}

// Static is a Program backed by a fixed list of functions.
type Static []*Func

// Functions returns the functions whose entry lies in set, ordered by address.
func (p Static) Functions(set AddressSet) ([]Function, error) {
	var out []Function
	for _, f := range p {
		if set.Contains(f.Entry) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out, nil
}
