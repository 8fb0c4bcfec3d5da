// Package bulk reduces a function to an order-independent multiset of
// instruction classes and compares two such multisets.
package bulk

import (
	"sort"

	"patchdiff/internal/program"
)

// Key is an instruction classification: the mnemonic followed by the
// operand kinds, e.g. "ldr reg,mem". Addresses and immediates never appear.
type Key string

// KeyOf classifies one instruction.
func KeyOf(inst program.Instruction) Key {
	return Key(inst.String())
}

// Bulk counts occurrences of each Key in a function. Counts are always
// positive; absent keys have count zero.
type Bulk struct {
	counts map[Key]int
	total  int
}

// Of walks fn once and returns its bulk. Errors from the instruction source
// are returned unmodified.
func Of(fn program.Function) (*Bulk, error) {
	b := &Bulk{counts: make(map[Key]int)}
	err := fn.Walk(func(inst program.Instruction) {
		b.add(KeyOf(inst))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FromKeys builds a bulk from a list of keys. Repeated keys count repeatedly.
func FromKeys(keys ...Key) *Bulk {
	b := &Bulk{counts: make(map[Key]int, len(keys))}
	for _, k := range keys {
		b.add(k)
	}
	return b
}

func (b *Bulk) add(k Key) {
	b.counts[k]++
	b.total++
}

// Count returns the occurrences of k.
func (b *Bulk) Count(k Key) int { return b.counts[k] }

// Total returns the number of instructions summarized by the bulk.
func (b *Bulk) Total() int { return b.total }

// Distinct returns the number of distinct keys.
func (b *Bulk) Distinct() int { return len(b.counts) }

// Keys returns the distinct keys in sorted order.
func (b *Bulk) Keys() []Key {
	keys := make([]Key, 0, len(b.counts))
	for k := range b.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Counts returns a copy of the key counts.
func (b *Bulk) Counts() map[Key]int {
	out := make(map[Key]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}
