package flagstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	flagSuffix     = ".flag"
	lockFileName   = ".lock"
	lockRetryDelay = 10 * time.Millisecond
)

// Dir is a Store that keeps one file per key in a directory. Mutations hold
// an advisory lock on <dir>/.lock so check-then-write sequences stay atomic
// across processes sharing the directory.
type Dir struct {
	root string
	lock *flock.Flock
}

// OpenDir prepares root and returns a directory-backed store.
func OpenDir(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("flag directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create flag directory: %w", err)
	}
	return &Dir{root: root, lock: flock.New(filepath.Join(root, lockFileName))}, nil
}

// Path returns the directory holding the flag files.
func (d *Dir) Path() string { return d.root }

func (d *Dir) fileFor(key string) string {
	return filepath.Join(d.root, url.PathEscape(key)+flagSuffix)
}

func (d *Dir) withLock(ctx context.Context, fn func() error) error {
	ctx = ensureContext(ctx)
	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock flag directory: %w", err)
	}
	if !locked {
		return errors.New("lock flag directory: not acquired")
	}
	defer func() { _ = d.lock.Unlock() }()
	return fn()
}

func (d *Dir) Get(_ context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(d.fileFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read flag: %w", err)
	}
	return string(data), true, nil
}

func (d *Dir) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return d.withLock(ctx, func() error {
		return d.write(key, value)
	})
}

func (d *Dir) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	stored := false
	err := d.withLock(ctx, func() error {
		if _, err := os.Stat(d.fileFor(key)); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat flag: %w", err)
		}
		if err := d.write(key, value); err != nil {
			return err
		}
		stored = true
		return nil
	})
	return stored, err
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return d.withLock(ctx, func() error {
		if err := os.Remove(d.fileFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove flag: %w", err)
		}
		return nil
	})
}

func (d *Dir) DeletePattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	err := d.withLock(ctx, func() error {
		keys, err := d.keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !Match(pattern, key) {
				continue
			}
			if err := os.Remove(d.fileFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove flag: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (d *Dir) List(ctx context.Context, pattern string) (map[string]string, error) {
	keys, err := d.keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, key := range keys {
		if !Match(pattern, key) {
			continue
		}
		value, ok, err := d.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

// Close releases the lock handle.
func (d *Dir) Close() error {
	if d == nil || d.lock == nil {
		return nil
	}
	return d.lock.Close()
}

func (d *Dir) keys() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read flag directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, flagSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, flagSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// write replaces the flag file via rename so readers never see a partial value.
func (d *Dir) write(key, value string) error {
	tmp, err := os.CreateTemp(d.root, ".flag-*")
	if err != nil {
		return fmt.Errorf("create temp flag: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write flag: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close flag: %w", err)
	}
	if err := os.Rename(tmpName, d.fileFor(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit flag: %w", err)
	}
	return nil
}
