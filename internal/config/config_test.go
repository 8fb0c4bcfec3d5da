package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"patchdiff/internal/correlate"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := cfg.CorrelatorOptions(); got != correlate.DefaultOptions() {
		t.Errorf("CorrelatorOptions() = %+v, want defaults", got)
	}
	if cfg.Logging.Env != "local" || cfg.HTTP.Port != 8080 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte(`
correlator:
  similarity_threshold: 0.75
  confidence_threshold: 10
  symbol_names_must_match: false
  workers: 4
`))
	if err != nil {
		t.Fatal(err)
	}
	want := correlate.Options{SimilarityThreshold: 0.75, ConfidenceThreshold: 10, SymbolNamesMustMatch: false}
	if got := cfg.CorrelatorOptions(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if cfg.Correlator.Workers != 4 {
		t.Errorf("workers = %d", cfg.Correlator.Workers)
	}
}

func TestParseZeroThresholdKept(t *testing.T) {
	cfg, err := Parse([]byte("correlator:\n  similarity_threshold: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CorrelatorOptions().SimilarityThreshold; got != 0 {
		t.Errorf("explicit 0 replaced by %v", got)
	}
}

func TestParseRejectsOutOfRangeSimilarity(t *testing.T) {
	_, err := Parse([]byte("correlator:\n  similarity_threshold: 1.2\n"))
	if !errors.Is(err, correlate.ErrInvalidSimilarityThreshold) {
		t.Fatalf("err = %v, want ErrInvalidSimilarityThreshold", err)
	}
}

func TestParseRejects(t *testing.T) {
	for _, doc := range []string{
		"correlator:\n  workers: -1\n",
		"logging:\n  env: staging\n",
		"http:\n  port: 70000\n",
		"correlator: [",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%q): expected error", doc)
		}
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PATCHDIFF_SIM", "0.9")
	path := filepath.Join(t.TempDir(), "patchdiff.yaml")
	doc := "correlator:\n  similarity_threshold: ${PATCHDIFF_SIM}\nlogging:\n  level: ${PATCHDIFF_LEVEL:-warn}\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CorrelatorOptions().SimilarityThreshold; got != 0.9 {
		t.Errorf("similarity = %v, want 0.9", got)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "patchdiff.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CorrelatorOptions(); got != correlate.DefaultOptions() {
		t.Errorf("example options = %+v, want defaults", got)
	}
	if cfg.HTTP.MaxBodyBytes != 64<<20 {
		t.Errorf("max body = %d", cfg.HTTP.MaxBodyBytes)
	}
}
