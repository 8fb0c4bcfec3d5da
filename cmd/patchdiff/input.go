package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"patchdiff/internal/elfx"
	"patchdiff/internal/program"
)

// openProgram loads either an ELF binary or a JSON function list.
// The returned closer is never nil.
func openProgram(lib, jsonPath string) (program.Program, io.Closer, error) {
	switch {
	case lib != "" && jsonPath != "":
		return nil, nil, fmt.Errorf("use either an ELF path or a JSON path, not both")
	case lib != "":
		ef, err := elfx.Open(lib)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", lib, err)
		}
		return ef, ef, nil
	case jsonPath != "":
		prog, err := readStatic(jsonPath)
		if err != nil {
			return nil, nil, err
		}
		return prog, io.NopCloser(nil), nil
	}
	return nil, nil, fmt.Errorf("no input given")
}

// readStatic decodes a JSON array of functions.
func readStatic(path string) (program.Static, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var fns []*program.Func
	if err := json.Unmarshal(data, &fns); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := fns[:0]
	for _, f := range fns {
		if f != nil {
			out = append(out, f)
		}
	}
	return program.Static(out), nil
}

func inputLabel(lib, jsonPath string) string {
	if lib != "" {
		return lib
	}
	return jsonPath
}
