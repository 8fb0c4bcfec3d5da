package main

import (
	"flag"
	"fmt"
	"os"

	"patchdiff/internal/elfx"
	"patchdiff/internal/program"
)

func cmdFuncs(args []string) error {
	fs := flag.NewFlagSet("funcs", flag.ExitOnError)
	lib := fs.String("lib", "", "path to ELF binary")
	rangeFlag := fs.String("range", "", "address set, e.g. 0x1000-0x2000")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *lib == "" {
		return fmt.Errorf("--lib is required")
	}
	set, err := program.ParseAddressSet(*rangeFlag)
	if err != nil {
		return fmt.Errorf("--range: %w", err)
	}

	ef, err := elfx.Open(*lib)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer ef.Close()

	fns, err := ef.Functions(set)
	if err != nil {
		return err
	}
	for _, fn := range fns {
		var size uint64
		if efn, ok := fn.(*elfx.Function); ok {
			size = efn.Size()
		}
		fmt.Printf("0x%x\t%d\t%s\n", fn.Address(), size, fn.Name())
	}
	fmt.Fprintf(os.Stderr, "%s: %d functions (%s)\n", *lib, len(fns), ef.Arch())
	return nil
}
