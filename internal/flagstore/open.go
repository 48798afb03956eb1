package flagstore

import (
	"errors"
	"fmt"

	"tickd/internal/config"
)

// Open returns the Store selected by cfg.Store.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return NewMemory(), nil
	case config.StoreBackendDir:
		return OpenDir(cfg.StorePath())
	case config.StoreBackendSQLite, "":
		return OpenSQLite(cfg.StorePath())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
