package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"tickd/internal/liveness"
	"tickd/internal/logging"
)

// Supervisor relaunches a daemon on a cron schedule whenever its liveness
// flag is absent. The daemon still enforces single-instance on its own; the
// flag check only avoids spawning children that would exit immediately.
type Supervisor struct {
	guard    *liveness.Guard
	launcher Launcher
	opts     LaunchOptions
	logger   *slog.Logger
	cron     *cron.Cron
}

// New validates opts and returns an idle Supervisor.
func New(guard *liveness.Guard, launcher Launcher, opts LaunchOptions, logger *slog.Logger) (*Supervisor, error) {
	if guard == nil || launcher == nil {
		return nil, errors.New("supervisor requires a liveness guard and launcher")
	}
	id, err := liveness.NormalizeIdentity(opts.Identity)
	if err != nil {
		return nil, err
	}
	opts.Identity = id
	return &Supervisor{
		guard:    guard,
		launcher: launcher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "supervise").With(logging.String(logging.FieldIdentity, id)),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}, nil
}

// Check launches the daemon if its flag is absent and reports whether it did.
func (s *Supervisor) Check(ctx context.Context) (bool, error) {
	held, err := s.guard.Held(ctx, s.opts.Identity)
	if err != nil {
		return false, fmt.Errorf("check liveness: %w", err)
	}
	if held {
		s.logger.Debug("daemon already running")
		return false, nil
	}
	if err := s.launcher.Launch(ctx, s.opts); err != nil {
		return false, err
	}
	return true, nil
}

// Start runs Check once, then on every schedule tick until Stop.
func (s *Supervisor) Start(ctx context.Context, schedule string) error {
	check := func() {
		if _, err := s.Check(ctx); err != nil {
			logging.ErrorWithContext(s.logger, "supervise check failed", "supervise_check_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the flag store and tickd executable"),
			)
		}
	}
	if _, err := s.cron.AddFunc(schedule, check); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	check()
	s.cron.Start()
	s.logger.Info("supervisor started", logging.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (s *Supervisor) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("supervisor stopped")
}

// Run starts the schedule and blocks until ctx ends.
func (s *Supervisor) Run(ctx context.Context, schedule string) error {
	if err := s.Start(ctx, schedule); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
