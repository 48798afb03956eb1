package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSupervise(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.tickInterval <= 0 {
		return errors.New("daemon.tick_interval must be positive")
	}
	if c.Daemon.maxLifetime <= 0 {
		return errors.New("daemon.max_lifetime must be positive")
	}
	if strings.Contains(c.Daemon.LogName, "/") || strings.Contains(c.Daemon.LogName, `\`) {
		return fmt.Errorf("daemon.log_name %q must not contain path separators", c.Daemon.LogName)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendSQLite, StoreBackendDir, StoreBackendMemory:
		return nil
	default:
		return fmt.Errorf("store.backend %q must be one of sqlite, dir, memory", c.Store.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validateSupervise() error {
	if _, err := cron.ParseStandard(c.Supervise.Schedule); err != nil {
		return fmt.Errorf("supervise.schedule %q: %w", c.Supervise.Schedule, err)
	}
	return nil
}
