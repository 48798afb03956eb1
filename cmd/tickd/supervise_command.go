package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tickd/internal/logging"
	"tickd/internal/supervise"
)

func newSuperviseCommand(ctx *commandContext) *cobra.Command {
	var schedule string
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "supervise <identity> [-- command [args...]]",
		Short: "Relaunch `tickd run` on a schedule whenever the identity is not running",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var command []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				if dash != 1 {
					return errors.New("supervise expects exactly one identity before --")
				}
				command = args[dash:]
			} else if len(args) > 1 {
				return errors.New("put the command after --, e.g. tickd supervise nightly -- ./job.sh")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(schedule) == "" {
				schedule = cfg.Supervise.Schedule
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}

			guard, store, err := ctx.openGuard()
			if err != nil {
				return err
			}
			defer store.Close()

			supervisor, err := supervise.New(guard, supervise.ExecLauncher{Executable: executable, Logger: logger}, supervise.LaunchOptions{
				Identity:     args[0],
				ConfigPath:   ctx.configPath,
				TickInterval: flags.tick,
				MaxLifetime:  flags.maxLifetime,
				Debug:        flags.debug,
				Command:      command,
			}, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return supervisor.Run(signalCtx, schedule)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule (overrides supervise.schedule)")
	cmd.Flags().StringVar(&flags.tick, "tick", "", "Passed to tickd run --tick")
	cmd.Flags().StringVar(&flags.maxLifetime, "max-lifetime", "", "Passed to tickd run --max-lifetime")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Passed to tickd run -d")
	return cmd
}
