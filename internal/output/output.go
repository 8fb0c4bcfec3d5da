// Package output writes correlation results to files and streams.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"patchdiff/internal/bulk"
	"patchdiff/internal/correlate"
	"patchdiff/internal/program"
)

// FunctionRef identifies a function in output records.
type FunctionRef struct {
	Name    string `json:"name"`
	Address uint64 `json:"address"`
}

// MatchRecord is the serialized form of one match.
type MatchRecord struct {
	Source      FunctionRef `json:"source"`
	Destination FunctionRef `json:"destination"`
	Similarity  float64     `json:"similarity"`
	Confidence  float64     `json:"confidence"`
}

// Report is the document written to matches.json.
type Report struct {
	Correlator  string            `json:"correlator"`
	Source      string            `json:"source,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Options     correlate.Options `json:"options"`
	Matches     []MatchRecord     `json:"matches"`
}

// Ref converts a function to its output reference.
func Ref(fn program.Function) FunctionRef {
	return FunctionRef{Name: fn.Name(), Address: fn.Address()}
}

// Records converts a match set, preserving its order.
func Records(ms correlate.MatchSet) []MatchRecord {
	out := make([]MatchRecord, len(ms))
	for i, m := range ms {
		out[i] = MatchRecord{
			Source:      Ref(m.Source),
			Destination: Ref(m.Destination),
			Similarity:  m.Similarity,
			Confidence:  m.Confidence,
		}
	}
	return out
}

// WriteMatchesJSON writes the report to dir/matches.json.
func WriteMatchesJSON(dir string, r Report) error {
	return writeJSON(filepath.Join(dir, "matches.json"), r)
}

// WriteMatchesJSONL writes one match record per line.
func WriteMatchesJSONL(w io.Writer, ms correlate.MatchSet) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range Records(ms) {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("output: encode match: %w", err)
		}
	}
	return nil
}

// BulkRecord is the serialized form of a function's bulk.
type BulkRecord struct {
	Function FunctionRef      `json:"function"`
	Total    int              `json:"total"`
	Counts   map[bulk.Key]int `json:"counts"`
}

// WriteBulkJSONL appends one bulk record as a JSON line.
func WriteBulkJSONL(w io.Writer, fn program.Function, b *bulk.Bulk) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	rec := BulkRecord{Function: Ref(fn), Total: b.Total(), Counts: b.Counts()}
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("output: encode bulk %s: %w", fn.Name(), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
