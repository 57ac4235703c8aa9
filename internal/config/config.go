// Package config parses pluto.yaml, the per-project configuration: entry
// file, incremental cache location, coverage output, and the Rust FFI
// binding sources scanned for extern functions.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pluto.yaml.
type Config struct {
	// Entry is the program's entry source file.
	Entry string `yaml:"entry"`

	// Sources lists additional source files compiled with the entry.
	Sources []string `yaml:"sources,omitempty"`

	// Incremental configures the compilation cache.
	Incremental IncrementalConfig `yaml:"incremental,omitempty"`

	// Coverage configures coverage-map emission.
	Coverage CoverageConfig `yaml:"coverage,omitempty"`

	// FFI lists Rust sources scanned for extern bindings.
	FFI FFIConfig `yaml:"ffi,omitempty"`
}

// IncrementalConfig controls the cache.
type IncrementalConfig struct {
	// Enabled turns incremental recompilation on.
	Enabled bool `yaml:"enabled,omitempty"`
	// CachePath is the sqlite cache location. Defaults to
	// ".pluto-cache.db" beside pluto.yaml.
	CachePath string `yaml:"cache_path,omitempty"`
}

// CoverageConfig controls coverage output.
type CoverageConfig struct {
	// Enabled turns coverage-map emission on.
	Enabled bool `yaml:"enabled,omitempty"`
	// MapPath is where the coverage map JSON is written. Defaults to
	// "<entry>.coverage.json".
	MapPath string `yaml:"map_path,omitempty"`
	// DataPath is where the instrumented binary writes counters.
	// Defaults to "<entry>.coverage.bin".
	DataPath string `yaml:"data_path,omitempty"`
}

// FFIConfig lists extern binding sources.
type FFIConfig struct {
	// RustSources are Rust files scanned for bindable pub fns.
	RustSources []string `yaml:"rust_sources,omitempty"`
}

// Load reads and validates pluto.yaml at path. Relative paths inside the
// config resolve against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	cfg.Entry = resolve(base, cfg.Entry)
	for i, s := range cfg.Sources {
		cfg.Sources[i] = resolve(base, s)
	}
	if cfg.Incremental.CachePath != "" {
		cfg.Incremental.CachePath = resolve(base, cfg.Incremental.CachePath)
	}
	cfg.Coverage.MapPath = resolve(base, cfg.Coverage.MapPath)
	cfg.Coverage.DataPath = resolve(base, cfg.Coverage.DataPath)
	for i, s := range cfg.FFI.RustSources {
		cfg.FFI.RustSources[i] = resolve(base, s)
	}
	return cfg, nil
}

// Parse decodes and validates a pluto.yaml document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse pluto.yaml: %w", err)
	}
	if cfg.Entry == "" {
		return nil, fmt.Errorf("pluto.yaml: 'entry' is required")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Incremental.CachePath == "" {
		c.Incremental.CachePath = ".pluto-cache.db"
	}
	if c.Coverage.MapPath == "" {
		c.Coverage.MapPath = c.Entry + ".coverage.json"
	}
	if c.Coverage.DataPath == "" {
		c.Coverage.DataPath = c.Entry + ".coverage.bin"
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
