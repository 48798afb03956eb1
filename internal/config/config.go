package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Daemon contains the run-loop cadence and the per-identity log stream settings.
type Daemon struct {
	TickInterval  string `toml:"tick_interval"`
	MaxLifetime   string `toml:"max_lifetime"`
	RetentionDays int    `toml:"retention_days"`
	LogName       string `toml:"log_name"`
	ShowPID       bool   `toml:"show_pid"`
	ShowHost      bool   `toml:"show_host"`

	tickInterval time.Duration
	maxLifetime  time.Duration
}

// Store selects the shared flag store backend.
type Store struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Logging contains configuration for operational log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains the optional prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Supervise contains the cron schedule used by `tickd supervise`.
type Supervise struct {
	Schedule string `toml:"schedule"`
}

// Config encapsulates all configuration values for tickd.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Daemon: tick cadence, lifetime cap, per-identity log stream
//   - Store: liveness flag backend
//   - Logging: operational log format, level, and retention
//   - Metrics: prometheus bind address
//   - Supervise: relaunch schedule
type Config struct {
	Paths     Paths     `toml:"paths"`
	Daemon    Daemon    `toml:"daemon"`
	Store     Store     `toml:"store"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
	Supervise Supervise `toml:"supervise"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tickd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and durations parsed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tickd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TickInterval returns the parsed sleep between iterations.
func (c *Config) TickInterval() time.Duration {
	if c.Daemon.tickInterval <= 0 {
		return defaultTickInterval
	}
	return c.Daemon.tickInterval
}

// MaxLifetime returns the parsed cap on continuous runtime.
func (c *Config) MaxLifetime() time.Duration {
	if c.Daemon.maxLifetime <= 0 {
		return defaultMaxLifetime
	}
	return c.Daemon.maxLifetime
}

// StorePath returns the flag store location for the configured backend.
func (c *Config) StorePath() string {
	if strings.TrimSpace(c.Store.Path) != "" {
		return c.Store.Path
	}
	switch c.Store.Backend {
	case StoreBackendDir:
		return filepath.Join(c.Paths.StateDir, "flags")
	default:
		return filepath.Join(c.Paths.StateDir, "flags.db")
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
