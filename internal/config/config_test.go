package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tickd/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "tickd", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "tickd")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.TickInterval() != time.Second {
		t.Fatalf("unexpected tick interval: %v", cfg.TickInterval())
	}
	if cfg.MaxLifetime() != time.Hour-10*time.Second {
		t.Fatalf("unexpected max lifetime: %v", cfg.MaxLifetime())
	}
	if cfg.Daemon.RetentionDays != 1 {
		t.Fatalf("unexpected daemon retention: %d", cfg.Daemon.RetentionDays)
	}
	if cfg.Store.Backend != config.StoreBackendSQLite {
		t.Fatalf("unexpected store backend: %q", cfg.Store.Backend)
	}
	if cfg.StorePath() != filepath.Join(wantState, "flags.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if cfg.Logging.Format != "auto" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tickd.toml")

	type payload struct {
		Daemon struct {
			TickInterval  string `toml:"tick_interval"`
			MaxLifetime   string `toml:"max_lifetime"`
			RetentionDays int    `toml:"retention_days"`
		} `toml:"daemon"`
		Store struct {
			Backend string `toml:"backend"`
		} `toml:"store"`
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Daemon.TickInterval = "250ms"
	custom.Daemon.MaxLifetime = "5m"
	custom.Daemon.RetentionDays = 7
	custom.Store.Backend = "DIR"
	custom.Paths.StateDir = filepath.Join(tempDir, "state")
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.TickInterval() != 250*time.Millisecond {
		t.Fatalf("expected tick interval 250ms, got %v", cfg.TickInterval())
	}
	if cfg.MaxLifetime() != 5*time.Minute {
		t.Fatalf("expected max lifetime 5m, got %v", cfg.MaxLifetime())
	}
	if cfg.Daemon.RetentionDays != 7 {
		t.Fatalf("expected retention 7, got %d", cfg.Daemon.RetentionDays)
	}
	if cfg.Store.Backend != config.StoreBackendDir {
		t.Fatalf("expected backend normalized to dir, got %q", cfg.Store.Backend)
	}
	if cfg.StorePath() != filepath.Join(tempDir, "state", "flags") {
		t.Fatalf("unexpected dir store path: %q", cfg.StorePath())
	}
}

func TestEnvOverridesStoreBackendAndLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TICKD_STORE_BACKEND", "memory")
	t.Setenv("TICKD_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Backend != config.StoreBackendMemory {
		t.Fatalf("expected env backend, got %q", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"bad duration":  "[daemon]\ntick_interval = \"soon\"\n",
		"zero lifetime": "[daemon]\nmax_lifetime = \"0s\"\n",
		"bad backend":   "[store]\nbackend = \"redis\"\n",
		"bad level":     "[logging]\nlevel = \"loud\"\n",
		"unknown key":   "[daemon]\nsleep = 3\n",
		"log name path": "[daemon]\nlog_name = \"../escape\"\n",
		"bad schedule":  "[supervise]\nschedule = \"every now and then\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tickd.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[daemon]") {
		t.Fatal("sample config missing [daemon] section")
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.MaxLifetime() != time.Hour-10*time.Second {
		t.Fatalf("unexpected sample max lifetime: %v", cfg.MaxLifetime())
	}
}
