package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"tickd/internal/logging"
)

// LaunchOptions describes the `tickd run` child to start.
type LaunchOptions struct {
	Identity     string
	ConfigPath   string
	TickInterval string
	MaxLifetime  string
	Debug        bool
	Command      []string
}

// Args returns the command line for a `tickd run` child.
func Args(opts LaunchOptions) []string {
	args := []string{"run", opts.Identity}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if tick := strings.TrimSpace(opts.TickInterval); tick != "" {
		args = append(args, "--tick", tick)
	}
	if lifetime := strings.TrimSpace(opts.MaxLifetime); lifetime != "" {
		args = append(args, "--max-lifetime", lifetime)
	}
	if opts.Debug {
		args = append(args, "-d")
	}
	if len(opts.Command) > 0 {
		args = append(args, "--")
		args = append(args, opts.Command...)
	}
	return args
}

// Launcher starts one child process.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) error
}

// ExecLauncher starts the tickd executable as a child process. Children are
// reaped in the background and their exit status is logged.
type ExecLauncher struct {
	Executable string
	Logger     *slog.Logger
}

// Launch starts the child without waiting for it. The child outlives ctx.
func (l ExecLauncher) Launch(_ context.Context, opts LaunchOptions) error {
	if strings.TrimSpace(l.Executable) == "" {
		return errors.New("resolve executable: executable path is empty")
	}
	logger := logging.NewComponentLogger(l.Logger, "supervise")

	proc := exec.Command(l.Executable, Args(opts)...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", opts.Identity, err)
	}
	pid := proc.Process.Pid
	logger.Info("daemon launched",
		logging.String(logging.FieldIdentity, opts.Identity),
		logging.Int("pid", pid),
	)
	go func() {
		if err := proc.Wait(); err != nil {
			logging.WarnWithContext(logger, "daemon exited with error", "daemon_exit_error",
				logging.String(logging.FieldIdentity, opts.Identity),
				logging.Int("pid", pid),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the daemon log for the identity"),
				logging.String(logging.FieldImpact, "the next scheduled check relaunches it"),
			)
			return
		}
		logger.Debug("daemon exited", logging.String(logging.FieldIdentity, opts.Identity), logging.Int("pid", pid))
	}()
	return nil
}
