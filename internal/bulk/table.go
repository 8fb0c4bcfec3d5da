package bulk

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"patchdiff/internal/program"
)

// ErrNotComparable is returned by Fill for a program.Function whose dynamic
// type cannot be a map key.
var ErrNotComparable = errors.New("bulk: function type is not comparable")

// Table memoizes bulks for the functions of one correlation run, keyed by
// function identity. Functions must therefore be comparable (pointers, or
// structs of comparable fields); Fill rejects other types up front instead
// of letting the map panic. Fill must complete before Get is called; after
// that the table is read-only.
type Table struct {
	bulks map[program.Function]*Bulk
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{bulks: make(map[program.Function]*Bulk)}
}

// Fill computes the bulk of every function not already in the table,
// using up to workers goroutines (0 means GOMAXPROCS). The first walk error
// aborts the fill and is returned wrapped with the function's identity.
func (t *Table) Fill(ctx context.Context, fns []program.Function, workers int) error {
	var todo []program.Function
	seen := make(map[program.Function]bool, len(fns))
	for _, fn := range fns {
		if typ := reflect.TypeOf(fn); typ == nil || !typ.Comparable() {
			return fmt.Errorf("%w: %T", ErrNotComparable, fn)
		}
		if _, ok := t.bulks[fn]; ok || seen[fn] {
			continue
		}
		seen[fn] = true
		todo = append(todo, fn)
	}
	if len(todo) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(todo))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Bulk, len(todo))
	next := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				fn := todo[i]
				b, err := Of(fn)
				if err != nil {
					fail(fmt.Errorf("bulk %s@0x%x: %w", fn.Name(), fn.Address(), err))
					continue
				}
				results[i] = b
			}
		}()
	}

feed:
	for i := range todo {
		select {
		case next <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, fn := range todo {
		t.bulks[fn] = results[i]
	}
	return nil
}

// Get returns the memoized bulk for fn, or nil if Fill never saw it.
func (t *Table) Get(fn program.Function) *Bulk {
	return t.bulks[fn]
}

// Len returns the number of memoized bulks.
func (t *Table) Len() int { return len(t.bulks) }
