package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "funcs":
		err = cmdFuncs(os.Args[2:])
	case "bulk":
		err = cmdBulk(os.Args[2:])
	case "correlate":
		err = cmdCorrelate(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `patchdiff: correlate functions across two builds by instruction bulk

Usage:
  patchdiff funcs     --lib <path> [--range <set>]          List symbolized functions
  patchdiff bulk      --lib <path> --func <name> [--json]    Print a function's instruction bulk
  patchdiff correlate --src <path> --dst <path> [flags]      Correlate two ELF binaries
  patchdiff correlate --src-json <path> --dst-json <path>    Correlate two JSON function lists
  patchdiff serve     [--config <path>]                      Run the HTTP correlation service

Correlate flags:
  --config <path>            YAML config (flags below override it)
  --similarity <f>           minimum similarity in [0,1] (default 0.5)
  --confidence <f>           minimum confidence (default 0)
  --names-must-match         only pair functions with identical names (default true)
  --workers <n>              worker goroutines (0 = GOMAXPROCS)
  --src-range, --dst-range   address sets, e.g. 0x1000-0x2000,0x3000-0x3400
  --best                     keep only the best match per source function
  --out <dir>                write matches.json instead of JSONL on stdout
  --graph                    also write matches.dot (requires --out)
  --html                     also write matches.html (requires --out)
  --metrics-file <path>      write prometheus text metrics after the run
`)
}
