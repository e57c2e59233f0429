package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the tarn.toml settings the driver honors.
// CLI flags override any value set here.
type Config struct {
	Project     ProjectConfig     `toml:"project"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Cache       CacheConfig       `toml:"cache"`
	Build       BuildConfig       `toml:"build"`
}

// ProjectConfig describes the [project] section.
type ProjectConfig struct {
	Name string `toml:"name"`
}

// PipelineConfig describes the [pipeline] section.
// An absent passes list means the default pipeline.
type PipelineConfig struct {
	Passes []string `toml:"passes"`
}

// DiagnosticsConfig describes the [diagnostics] section.
type DiagnosticsConfig struct {
	Max int `toml:"max"`
}

// CacheConfig describes the [cache] section.
// An empty dir means the per-user default location.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// BuildConfig describes the [build] section.
// Jobs 0 means one worker per CPU.
type BuildConfig struct {
	Jobs int `toml:"jobs"`
}

var (
	// ErrNegativeMaxDiagnostics indicates [diagnostics].max below zero.
	ErrNegativeMaxDiagnostics = errors.New("negative [diagnostics].max")
	// ErrNegativeJobs indicates [build].jobs below zero.
	ErrNegativeJobs = errors.New("negative [build].jobs")
	// ErrEmptyPassName indicates an empty entry in [pipeline].passes.
	ErrEmptyPassName = errors.New("empty entry in [pipeline].passes")
)

// DefaultConfig returns the settings used when no tarn.toml is found.
func DefaultConfig() Config {
	return Config{
		Diagnostics: DiagnosticsConfig{Max: 100},
		Cache:       CacheConfig{Enabled: true},
	}
}

// LoadConfig parses a tarn.toml file. Sections that are absent keep
// their defaults, so a minimal manifest is valid.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}

	if meta.IsDefined("project", "name") {
		cfg.Project.Name = strings.TrimSpace(raw.Project.Name)
	}
	if meta.IsDefined("pipeline", "passes") {
		passes := make([]string, 0, len(raw.Pipeline.Passes))
		for _, name := range raw.Pipeline.Passes {
			name = strings.TrimSpace(name)
			if name == "" {
				return Config{}, fmt.Errorf("%s: %w", path, ErrEmptyPassName)
			}
			passes = append(passes, name)
		}
		cfg.Pipeline.Passes = passes
	}
	if meta.IsDefined("diagnostics", "max") {
		if raw.Diagnostics.Max < 0 {
			return Config{}, fmt.Errorf("%s: %w", path, ErrNegativeMaxDiagnostics)
		}
		cfg.Diagnostics.Max = raw.Diagnostics.Max
	}
	if meta.IsDefined("cache", "enabled") {
		cfg.Cache.Enabled = raw.Cache.Enabled
	}
	if meta.IsDefined("cache", "dir") {
		cfg.Cache.Dir = strings.TrimSpace(raw.Cache.Dir)
	}
	if meta.IsDefined("build", "jobs") {
		if raw.Build.Jobs < 0 {
			return Config{}, fmt.Errorf("%s: %w", path, ErrNegativeJobs)
		}
		cfg.Build.Jobs = raw.Build.Jobs
	}

	return cfg, nil
}

// LoadProjectConfig walks up from startDir looking for a tarn.toml and
// parses it. When no manifest exists the defaults are returned with
// ok=false, which is not an error.
func LoadProjectConfig(startDir string) (cfg Config, manifestPath string, ok bool, err error) {
	manifestPath, ok, err = FindTarnToml(startDir)
	if err != nil || !ok {
		return DefaultConfig(), "", ok, err
	}
	cfg, err = LoadConfig(manifestPath)
	if err != nil {
		return Config{}, manifestPath, true, err
	}
	return cfg, manifestPath, true, nil
}
