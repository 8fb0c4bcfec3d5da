// Package config loads patchdiff settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"patchdiff/internal/correlate"
)

// Config holds the patchdiff configuration.
type Config struct {
	Correlator CorrelatorConfig `yaml:"correlator"`
	Logging    LoggingConfig    `yaml:"logging"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// CorrelatorConfig holds correlation settings.
type CorrelatorConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	// Pointer so an absent key keeps the default (true).
	SymbolNamesMustMatch *bool `yaml:"symbol_names_must_match"`
	Workers              int   `yaml:"workers"` // 0 = GOMAXPROCS
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod (default: local)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, substitutes ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Correlator.SimilarityThreshold == nil {
		v := correlate.DefaultSimilarityThreshold
		c.Correlator.SimilarityThreshold = &v
	}
	if c.Correlator.ConfidenceThreshold == nil {
		v := correlate.DefaultConfidenceThreshold
		c.Correlator.ConfidenceThreshold = &v
	}
	if c.Correlator.SymbolNamesMustMatch == nil {
		v := correlate.DefaultSymbolNamesMustMatch
		c.Correlator.SymbolNamesMustMatch = &v
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 64 << 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.CorrelatorOptions().Validate(); err != nil {
		return err
	}
	if c.Correlator.Workers < 0 {
		return fmt.Errorf("correlator.workers must be >= 0, got %d", c.Correlator.Workers)
	}
	switch c.Logging.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("logging.env must be local, dev or prod, got %q", c.Logging.Env)
	}
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// CorrelatorOptions converts the correlator section. ApplyDefaults must
// have run first.
func (c *Config) CorrelatorOptions() correlate.Options {
	return correlate.Options{
		SimilarityThreshold:  *c.Correlator.SimilarityThreshold,
		ConfidenceThreshold:  *c.Correlator.ConfidenceThreshold,
		SymbolNamesMustMatch: *c.Correlator.SymbolNamesMustMatch,
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
