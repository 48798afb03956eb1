package flagstore

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidKey is returned for empty keys.
var ErrInvalidKey = errors.New("flag key is required")

// Store is a shared key-value register used for liveness flags. Values never
// expire; removal is explicit.
//
// SetIfAbsent must be atomic relative to every other SetIfAbsent on the same
// key, including callers in other processes sharing the backend. Patterns
// accept '*' as a wildcard for any run of characters; every other character
// matches literally.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	List(ctx context.Context, pattern string) (map[string]string, error)
	Close() error
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// Match reports whether key matches pattern, where '*' matches any run of
// characters (including none).
func Match(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}
	return strings.HasSuffix(key, last)
}
