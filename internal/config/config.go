// Package config holds the auditor's file-backed configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all auditor configuration.
type Config struct {
	// AreasDir is the root of the area specification files, laid out as
	// <catalog>/<code>.yaml.
	AreasDir string `yaml:"areas_dir"`

	// StudentDir holds the student JSON exports, one <stnum>.json each.
	StudentDir string `yaml:"student_dir"`

	// DatabasePath is where batch results are persisted.
	DatabasePath string `yaml:"database_path"`

	// Workers bounds the batch driver's parallelism across audits.
	Workers int `yaml:"workers"`

	Logging LoggingConfig `yaml:"logging"`

	Audit AuditConfig `yaml:"audit"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AuditConfig bounds individual audit runs.
type AuditConfig struct {
	// TimeoutSeconds is the per-audit deadline; zero disables it.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// IterationLimit caps solver candidate evaluations; zero disables it.
	IterationLimit int `yaml:"iteration_limit"`

	// ProgressEvery emits a progress message every N iterations.
	ProgressEvery int `yaml:"progress_every"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AreasDir:     "areas",
		StudentDir:   "students",
		DatabasePath: "data/audits.db",
		Workers:      runtime.NumCPU(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Audit: AuditConfig{
			TimeoutSeconds: 60,
			IterationLimit: 0,
			ProgressEvery:  1000,
		},
	}
}

// Load reads a config file over the defaults; a missing file is not an
// error. Environment variables AUDIT_AREAS_DIR, AUDIT_STUDENT_DIR, and
// AUDIT_DATABASE override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := yaml.Unmarshal(blob, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("AUDIT_AREAS_DIR"); v != "" {
		cfg.AreasDir = v
	}
	if v := os.Getenv("AUDIT_STUDENT_DIR"); v != "" {
		cfg.StudentDir = v
	}
	if v := os.Getenv("AUDIT_DATABASE"); v != "" {
		cfg.DatabasePath = v
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return cfg, nil
}

// AreaPath resolves the specification file for a catalog and area code.
func (c *Config) AreaPath(catalog, code string) string {
	return filepath.Join(c.AreasDir, catalog, code+".yaml")
}

// StudentPath resolves the export file for a student number.
func (c *Config) StudentPath(stnum string) string {
	return filepath.Join(c.StudentDir, stnum+".json")
}
