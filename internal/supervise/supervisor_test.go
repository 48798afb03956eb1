package supervise

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"sync"
	"testing"
	"time"

	"tickd/internal/flagstore"
	"tickd/internal/liveness"
)

type recordingLauncher struct {
	mu       sync.Mutex
	launches []LaunchOptions
	err      error
}

func (l *recordingLauncher) Launch(_ context.Context, opts LaunchOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.launches = append(l.launches, opts)
	return nil
}

func (l *recordingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func TestArgs(t *testing.T) {
	got := Args(LaunchOptions{
		Identity:     "nightly",
		ConfigPath:   "/etc/tickd.toml",
		TickInterval: "5s",
		Debug:        true,
		Command:      []string{"echo", "hi"},
	})
	want := []string{"run", "nightly", "--config", "/etc/tickd.toml", "--tick", "5s", "-d", "--", "echo", "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Args = %v, want %v", got, want)
	}
	if got := Args(LaunchOptions{Identity: "x"}); !reflect.DeepEqual(got, []string{"run", "x"}) {
		t.Fatalf("minimal Args = %v", got)
	}
}

func TestCheckLaunchesOnlyWhenFlagAbsent(t *testing.T) {
	ctx := context.Background()
	guard := liveness.NewGuard(flagstore.NewMemory(), nil)
	launcher := &recordingLauncher{}
	s, err := New(guard, launcher, LaunchOptions{Identity: " nightly "}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	launched, err := s.Check(ctx)
	if err != nil || !launched {
		t.Fatalf("Check on free identity = %v %v", launched, err)
	}
	if launcher.launches[0].Identity != "nightly" {
		t.Fatalf("identity not normalized: %q", launcher.launches[0].Identity)
	}

	if _, err := guard.Acquire(ctx, "nightly"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	launched, err = s.Check(ctx)
	if err != nil || launched {
		t.Fatalf("Check on held identity = %v %v", launched, err)
	}
	if launcher.count() != 1 {
		t.Fatalf("launches = %d, want 1", launcher.count())
	}
}

func TestCheckPropagatesLaunchError(t *testing.T) {
	guard := liveness.NewGuard(flagstore.NewMemory(), nil)
	boom := errors.New("boom")
	s, err := New(guard, &recordingLauncher{err: boom}, LaunchOptions{Identity: "x"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Check(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected launch error, got %v", err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	guard := liveness.NewGuard(flagstore.NewMemory(), nil)
	if _, err := New(guard, &recordingLauncher{}, LaunchOptions{Identity: "*"}, nil); !errors.Is(err, liveness.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
	if _, err := New(nil, &recordingLauncher{}, LaunchOptions{Identity: "x"}, nil); err == nil {
		t.Fatal("expected error without guard")
	}
}

func TestRunChecksImmediatelyAndStopsWithContext(t *testing.T) {
	guard := liveness.NewGuard(flagstore.NewMemory(), nil)
	launcher := &recordingLauncher{}
	s, err := New(guard, launcher, LaunchOptions{Identity: "x"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "@every 1h") }()

	deadline := time.Now().Add(5 * time.Second)
	for launcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if launcher.count() != 1 {
		t.Fatalf("expected immediate launch, got %d", launcher.count())
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	guard := liveness.NewGuard(flagstore.NewMemory(), nil)
	s, err := New(guard, &recordingLauncher{}, LaunchOptions{Identity: "x"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestExecLauncherStartsChild(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true binary not available")
	}
	l := ExecLauncher{Executable: truePath}
	if err := l.Launch(context.Background(), LaunchOptions{Identity: "x"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := (ExecLauncher{}).Launch(context.Background(), LaunchOptions{Identity: "x"}); err == nil {
		t.Fatal("expected error for empty executable")
	}
}
