package program

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrBadRange is returned by ParseAddressSet for malformed ranges.
var ErrBadRange = errors.New("program: bad address range")

// Range is a half-open address interval [Start, End).
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// AddressSet is a union of ranges. The empty set matches every address.
type AddressSet []Range

// Contains reports whether addr lies in the set.
func (s AddressSet) Contains(addr uint64) bool {
	if len(s) == 0 {
		return true
	}
	for _, r := range s {
		if addr >= r.Start && addr < r.End {
			return true
		}
	}
	return false
}

// ParseAddressSet parses a comma-separated list of "start-end" ranges with
// hex (0x-prefixed) or decimal bounds. An empty string yields the empty set.
func ParseAddressSet(s string) (AddressSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var set AddressSet
	for _, part := range strings.Split(s, ",") {
		lo, hi, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			return nil, fmt.Errorf("%w: %q (want start-end)", ErrBadRange, part)
		}
		start, err := strconv.ParseUint(strings.TrimSpace(lo), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadRange, part, err)
		}
		end, err := strconv.ParseUint(strings.TrimSpace(hi), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadRange, part, err)
		}
		if end <= start {
			return nil, fmt.Errorf("%w: %q is empty", ErrBadRange, part)
		}
		set = append(set, Range{Start: start, End: end})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Start < set[j].Start })
	return set, nil
}

// String renders the set in the form accepted by ParseAddressSet.
func (s AddressSet) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = fmt.Sprintf("0x%x-0x%x", r.Start, r.End)
	}
	return strings.Join(parts, ",")
}
