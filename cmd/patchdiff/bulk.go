package main

import (
	"flag"
	"fmt"
	"os"

	"patchdiff/internal/bulk"
	"patchdiff/internal/disasm"
	"patchdiff/internal/elfx"
	"patchdiff/internal/output"
)

func cmdBulk(args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	lib := fs.String("lib", "", "path to ELF binary")
	name := fs.String("func", "", "function name")
	asJSON := fs.Bool("json", false, "emit one JSON line per function")
	listing := fs.Bool("disasm", false, "print the decoded instructions before the bulk")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *lib == "" || *name == "" {
		return fmt.Errorf("--lib and --func are required")
	}

	ef, err := elfx.Open(*lib)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer ef.Close()

	fns, err := ef.Functions(nil)
	if err != nil {
		return err
	}

	found := 0
	for _, fn := range fns {
		if fn.Name() != *name {
			continue
		}
		found++
		b, err := bulk.Of(fn)
		if err != nil {
			return err
		}
		if *asJSON {
			if err := output.WriteBulkJSONL(os.Stdout, fn, b); err != nil {
				return err
			}
			continue
		}

		fmt.Printf("%s @ 0x%x: %d instructions, %d distinct keys\n", fn.Name(), fn.Address(), b.Total(), b.Distinct())
		if *listing {
			insts, err := fn.(*elfx.Function).Instructions()
			if err != nil {
				return err
			}
			fmt.Print(disasm.Format(insts))
		}
		for _, k := range b.Keys() {
			fmt.Printf("%6d  %s\n", b.Count(k), k)
		}
	}
	if found == 0 {
		return fmt.Errorf("function %q not found in %s", *name, *lib)
	}
	return nil
}
