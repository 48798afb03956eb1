package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"tickd/internal/daemon"
	"tickd/internal/flagstore"
	"tickd/internal/liveness"
	"tickd/internal/logging"
	"tickd/internal/metrics"
	"tickd/internal/objcache"
)

type runFlags struct {
	tick        string
	maxLifetime string
	debug       bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <identity> [-- command [args...]]",
		Short: "Run the tick daemon for an identity",
		Long: "Run acquires the identity's liveness flag and runs the command once per tick until the\n" +
			"max lifetime elapses, SIGINT/SIGTERM arrives, or `tickd stop` removes the flag.\n" +
			"If another instance holds the flag it prints a note and exits 0.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var command []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				if dash != 1 {
					return errors.New("run expects exactly one identity before --")
				}
				command = args[dash:]
			} else if len(args) > 1 {
				return errors.New("put the command after --, e.g. tickd run nightly -- ./job.sh")
			}
			return runDaemon(cmd, ctx, args[0], command, flags)
		},
	}

	cmd.Flags().StringVar(&flags.tick, "tick", "", "Sleep between ticks (overrides daemon.tick_interval)")
	cmd.Flags().StringVar(&flags.maxLifetime, "max-lifetime", "", "Runtime cap (overrides daemon.max_lifetime)")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Echo lifecycle events to stdout")
	return cmd
}

func runDaemon(cmd *cobra.Command, ctx *commandContext, identity string, command []string, flags runFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	id, err := liveness.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	tick, err := durationOverride(flags.tick, cfg.TickInterval())
	if err != nil {
		return fmt.Errorf("--tick: %w", err)
	}
	lifetime, err := durationOverride(flags.maxLifetime, cfg.MaxLifetime())
	if err != nil {
		return fmt.Errorf("--max-lifetime: %w", err)
	}

	logName := cfg.Daemon.LogName
	if logName == "" {
		logName = fileSafe(id)
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("tickd-%s-%s.log", logName, runID))
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "tickd-" + logName + "-*.log", Exclude: []string{logPath}},
	)

	store, err := flagstore.Open(cfg)
	if err != nil {
		logger.Error("open flag store", logging.Error(err))
		return fmt.Errorf("open flag store: %w", err)
	}
	var closeOnce sync.Once
	closeStore := func() {
		closeOnce.Do(func() {
			if err := store.Close(); err != nil {
				logger.Debug("close flag store", logging.Error(err))
			}
		})
	}
	guard := liveness.NewGuard(store, logger)

	collectors := metrics.NewCollectors()
	commands := objcache.New[string, string]("commands", logger)
	out := cmd.OutOrStdout()

	opts := []daemon.Option{
		daemon.WithTickInterval(tick),
		daemon.WithMaxLifetime(lifetime),
		daemon.WithSink(logging.NewFileSink(cfg.Paths.LogDir), logName, cfg.Daemon.RetentionDays, logging.EntryOptions{
			ShowPID:  cfg.Daemon.ShowPID,
			ShowHost: cfg.Daemon.ShowHost,
		}),
		daemon.WithLogger(logger),
		daemon.WithInvalidator(commands),
		daemon.WithMetrics(collectors),
		daemon.WithExitFunc(func(code int) {
			closeStore()
			ctx.exit(code)
		}),
	}
	if flags.debug {
		opts = append(opts, daemon.WithDebugEcho(out))
	}

	runner, err := daemon.New(cmd.Context(), id, guard, opts...)
	if err != nil {
		closeStore()
		if errors.Is(err, liveness.ErrAlreadyRunning) {
			fmt.Fprintf(out, "%s already running\n", id)
			return nil
		}
		return err
	}

	server := metrics.NewServer(cfg.Metrics.Bind, collectors, func() metrics.Health {
		return metrics.Health{
			Identity: runner.Identity(),
			State:    runner.State().String(),
			Elapsed:  runner.Elapsed().Round(time.Second).String(),
			Ticks:    runner.Ticks(),
		}
	}, logger)
	if err := server.Start(cmd.Context()); err != nil {
		logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.bind in the config"),
			logging.String(logging.FieldImpact, "metrics are not exported for this run"),
		)
	}
	defer server.Stop()

	var callback daemon.Callback
	if len(command) > 0 {
		callback = commandCallback(command, commands, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
	}
	err = runner.Run(cmd.Context(), callback)
	closeStore()
	return err
}

// commandCallback runs command once per tick with the daemon's stdio. The
// executable path is resolved through cache, which the runner clears every
// tick so a replaced binary is picked up.
func commandCallback(command []string, cache *objcache.Cache[string, string], stdout, stderr io.Writer, logger *slog.Logger) daemon.Callback {
	return func(ctx context.Context, r *daemon.Runner) error {
		path, err := cache.GetOrLoad(command[0], exec.LookPath)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", command[0], err)
		}
		proc := exec.CommandContext(ctx, path, command[1:]...)
		proc.Stdin = os.Stdin
		proc.Stdout = stdout
		proc.Stderr = stderr
		proc.Env = append(os.Environ(),
			"TICKD_IDENTITY="+r.Identity(),
			"TICKD_TICK="+strconv.FormatInt(r.Ticks(), 10),
		)
		started := time.Now()
		if err := proc.Run(); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(command, " "), err)
		}
		logger.Debug("tick command finished",
			logging.String(logging.FieldIdentity, r.Identity()),
			logging.Int64("tick", r.Ticks()),
			logging.Duration("duration", time.Since(started)),
		)
		return nil
	}
}

func durationOverride(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return d, nil
}

// fileSafe maps an identity onto a string usable as a file name component.
func fileSafe(identity string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(identity)
}
