package liveness

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickd/internal/flagstore"
)

func newTestGuard(t *testing.T) (*Guard, *flagstore.Memory) {
	t.Helper()
	store := flagstore.NewMemory()
	guard := NewGuard(store, nil)
	guard.now = func() time.Time { return time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC) }
	return guard, store
}

func TestAcquireSetsFlagOnce(t *testing.T) {
	ctx := context.Background()
	guard, store := newTestGuard(t)

	holder, err := guard.Acquire(ctx, "nightly")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if holder.Identity != "nightly" || holder.InstanceID == "" || holder.PID == 0 {
		t.Fatalf("unexpected holder %+v", holder)
	}
	if _, ok, _ := store.Get(ctx, "tickd-running-nightly"); !ok {
		t.Fatal("expected flag tickd-running-nightly to be set")
	}

	existing, err := guard.Acquire(ctx, "nightly")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if existing.InstanceID != holder.InstanceID {
		t.Fatalf("existing holder = %+v, want instance %s", existing, holder.InstanceID)
	}
}

func TestAcquireDoesNotOverwriteForeignValue(t *testing.T) {
	ctx := context.Background()
	guard, store := newTestGuard(t)
	if err := store.Set(ctx, "tickd-running-nightly", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	holder, err := guard.Acquire(ctx, "nightly")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if holder.Identity != "nightly" || holder.InstanceID != "" {
		t.Fatalf("unexpected holder %+v", holder)
	}
	value, _, _ := store.Get(ctx, "tickd-running-nightly")
	if value != "1" {
		t.Fatalf("flag value changed to %q", value)
	}
}

func TestNormalizeIdentity(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	a, err := NormalizeIdentity("  " + composed + " ")
	if err != nil {
		t.Fatalf("NormalizeIdentity: %v", err)
	}
	b, err := NormalizeIdentity(decomposed)
	if err != nil {
		t.Fatalf("NormalizeIdentity: %v", err)
	}
	if a != b {
		t.Fatalf("normalized identities differ: %q vs %q", a, b)
	}

	for _, bad := range []string{"", "   ", "*", "night*"} {
		if _, err := NormalizeIdentity(bad); !errors.Is(err, ErrInvalidIdentity) {
			t.Fatalf("NormalizeIdentity(%q) = %v, want ErrInvalidIdentity", bad, err)
		}
	}
}

func TestReleaseAndHeld(t *testing.T) {
	ctx := context.Background()
	guard, _ := newTestGuard(t)
	if _, err := guard.Acquire(ctx, "job"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	held, err := guard.Held(ctx, "job")
	if err != nil || !held {
		t.Fatalf("Held = %v %v", held, err)
	}
	if err := guard.Release(ctx, "job"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := guard.Release(ctx, "job"); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	held, _ = guard.Held(ctx, "job")
	if held {
		t.Fatal("expected flag released")
	}
	if _, err := guard.Acquire(ctx, "job"); err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
}

func TestForceRelease(t *testing.T) {
	ctx := context.Background()
	guard, store := newTestGuard(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := guard.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
	}
	if err := store.Set(ctx, "unrelated", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	removed, err := guard.ForceRelease(ctx, "a")
	if err != nil || removed != 1 {
		t.Fatalf("ForceRelease(a) = %d %v", removed, err)
	}
	removed, err = guard.ForceRelease(ctx, "a")
	if err != nil || removed != 0 {
		t.Fatalf("ForceRelease(a) again = %d %v", removed, err)
	}
	removed, err = guard.ForceRelease(ctx, All)
	if err != nil || removed != 2 {
		t.Fatalf("ForceRelease(All) = %d %v", removed, err)
	}
	if _, ok, _ := store.Get(ctx, "unrelated"); !ok {
		t.Fatal("ForceRelease(All) removed a non-liveness key")
	}
	if _, err := guard.Acquire(ctx, "d"); err != nil {
		t.Fatalf("Acquire d: %v", err)
	}
	removed, err = guard.ForceRelease(ctx, "")
	if err != nil || removed != 1 {
		t.Fatalf("ForceRelease(\"\") = %d %v", removed, err)
	}
}

func TestListSortsHolders(t *testing.T) {
	ctx := context.Background()
	guard, store := newTestGuard(t)
	for _, id := range []string{"zeta", "alpha"} {
		if _, err := guard.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
	}
	if err := store.Set(ctx, "tickd-running-manual", "not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	holders, err := guard.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(holders) != 3 {
		t.Fatalf("expected 3 holders, got %d", len(holders))
	}
	if holders[0].Identity != "alpha" || holders[1].Identity != "manual" || holders[2].Identity != "zeta" {
		t.Fatalf("unexpected order: %+v", holders)
	}
	if holders[1].InstanceID != "" {
		t.Fatalf("expected bare holder for manual flag, got %+v", holders[1])
	}
	if !holders[0].AcquiredAt.Equal(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("AcquiredAt = %v", holders[0].AcquiredAt)
	}
}
