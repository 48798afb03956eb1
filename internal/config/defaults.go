package config

import "time"

const (
	StoreBackendSQLite = "sqlite"
	StoreBackendDir    = "dir"
	StoreBackendMemory = "memory"
)

const (
	defaultStateDir          = "~/.local/share/tickd"
	defaultLogDir            = "~/.local/share/tickd/logs"
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 14
	defaultTickInterval      = time.Second
	defaultMaxLifetime       = time.Hour - 10*time.Second
	defaultDaemonRetention   = 1
	defaultStoreBackend      = StoreBackendSQLite
	defaultSuperviseSchedule = "@every 1m"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Daemon: Daemon{
			TickInterval:  defaultTickInterval.String(),
			MaxLifetime:   defaultMaxLifetime.String(),
			RetentionDays: defaultDaemonRetention,
			tickInterval:  defaultTickInterval,
			maxLifetime:   defaultMaxLifetime,
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Supervise: Supervise{
			Schedule: defaultSuperviseSchedule,
		},
	}
}
