package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"tickd/internal/flagstore"
	"tickd/internal/logging"
)

// KeyPrefix namespaces liveness flags inside a shared store.
const KeyPrefix = "tickd-running-"

// All selects every liveness flag in ForceRelease.
const All = "*"

var (
	// ErrAlreadyRunning reports that another instance holds the identity's flag.
	ErrAlreadyRunning = errors.New("already running")
	// ErrInvalidIdentity reports an identity that cannot name a flag.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Holder describes the instance that set a liveness flag.
type Holder struct {
	Identity   string    `json:"identity"`
	InstanceID string    `json:"instance_id,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Host       string    `json:"host,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitzero"`
}

// Guard manages "<KeyPrefix><identity>" flags in a shared store. A present
// flag means an instance for that identity is alive; removing it from
// outside asks that instance to stop at its next tick.
type Guard struct {
	store  flagstore.Store
	logger *slog.Logger
	now    func() time.Time
	pid    int
	host   string
}

// NewGuard wraps store. A nil logger discards log output.
func NewGuard(store flagstore.Store, logger *slog.Logger) *Guard {
	host, _ := os.Hostname()
	return &Guard{
		store:  store,
		logger: logging.NewComponentLogger(logger, "liveness"),
		now:    time.Now,
		pid:    os.Getpid(),
		host:   host,
	}
}

// NormalizeIdentity trims and NFC-normalizes identity and rejects values
// that cannot name a single flag.
func NormalizeIdentity(identity string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(identity))
	if normalized == "" {
		return "", fmt.Errorf("%w: identity is required", ErrInvalidIdentity)
	}
	if strings.Contains(normalized, All) {
		return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIdentity, normalized, All)
	}
	return normalized, nil
}

// Key returns the flag key for an already normalized identity.
func Key(identity string) string {
	return KeyPrefix + identity
}

// Acquire sets the identity's flag if no other instance holds it. On
// ErrAlreadyRunning the returned Holder describes the current holder when
// its record is readable.
func (g *Guard) Acquire(ctx context.Context, identity string) (Holder, error) {
	id, err := NormalizeIdentity(identity)
	if err != nil {
		return Holder{}, err
	}
	holder := Holder{
		Identity:   id,
		InstanceID: uuid.NewString(),
		PID:        g.pid,
		Host:       g.host,
		AcquiredAt: g.now().UTC(),
	}
	payload, err := json.Marshal(holder)
	if err != nil {
		return Holder{}, fmt.Errorf("encode holder: %w", err)
	}
	stored, err := g.store.SetIfAbsent(ctx, Key(id), string(payload))
	if err != nil {
		return Holder{}, fmt.Errorf("acquire %s: %w", id, err)
	}
	if !stored {
		existing := Holder{Identity: id}
		if value, ok, getErr := g.store.Get(ctx, Key(id)); getErr == nil && ok {
			existing = decodeHolder(id, value)
		}
		return existing, fmt.Errorf("%s: %w", id, ErrAlreadyRunning)
	}
	g.logger.Debug("liveness flag acquired",
		logging.String(logging.FieldIdentity, id),
		logging.String(logging.FieldInstanceID, holder.InstanceID),
	)
	return holder, nil
}

// Held reports whether the identity's flag is present.
func (g *Guard) Held(ctx context.Context, identity string) (bool, error) {
	id, err := NormalizeIdentity(identity)
	if err != nil {
		return false, err
	}
	_, ok, err := g.store.Get(ctx, Key(id))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", id, err)
	}
	return ok, nil
}

// Release removes the identity's flag. Releasing an absent flag is not an error.
func (g *Guard) Release(ctx context.Context, identity string) error {
	id, err := NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	if err := g.store.Delete(ctx, Key(id)); err != nil {
		return fmt.Errorf("release %s: %w", id, err)
	}
	g.logger.Debug("liveness flag released", logging.String(logging.FieldIdentity, id))
	return nil
}

// ForceRelease removes the flag for identity, or every liveness flag when
// identity is All or empty. It returns the number of flags removed. Running
// instances notice at their next tick and shut down.
func (g *Guard) ForceRelease(ctx context.Context, identity string) (int, error) {
	trimmed := strings.TrimSpace(identity)
	if trimmed == "" || trimmed == All {
		removed, err := g.store.DeletePattern(ctx, KeyPrefix+All)
		if err != nil {
			return 0, fmt.Errorf("force release all: %w", err)
		}
		g.logger.Info("liveness flags force released", logging.Int("count", removed))
		return removed, nil
	}
	id, err := NormalizeIdentity(trimmed)
	if err != nil {
		return 0, err
	}
	_, ok, err := g.store.Get(ctx, Key(id))
	if err != nil {
		return 0, fmt.Errorf("force release %s: %w", id, err)
	}
	if !ok {
		return 0, nil
	}
	if err := g.store.Delete(ctx, Key(id)); err != nil {
		return 0, fmt.Errorf("force release %s: %w", id, err)
	}
	g.logger.Info("liveness flag force released", logging.String(logging.FieldIdentity, id))
	return 1, nil
}

// List returns the holders of every liveness flag, sorted by identity.
func (g *Guard) List(ctx context.Context) ([]Holder, error) {
	flags, err := g.store.List(ctx, KeyPrefix+All)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	holders := make([]Holder, 0, len(flags))
	for key, value := range flags {
		holders = append(holders, decodeHolder(strings.TrimPrefix(key, KeyPrefix), value))
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].Identity < holders[j].Identity })
	return holders, nil
}

// decodeHolder parses a flag value. Values written by other tools list with
// only the identity filled in.
func decodeHolder(identity, value string) Holder {
	var holder Holder
	if err := json.Unmarshal([]byte(value), &holder); err != nil {
		return Holder{Identity: identity}
	}
	holder.Identity = identity
	return holder
}
