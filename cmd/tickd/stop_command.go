package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tickd/internal/liveness"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop <identity> | --all",
		Short: "Remove liveness flags so running daemons shut down at their next tick",
		Long: "Stop removes the liveness flag for an identity (or every identity with --all).\n" +
			"A running daemon notices at its next tick and shuts down gracefully. Use it as well\n" +
			"to clear a stale flag left behind by a crashed process.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := liveness.All
			switch {
			case all && len(args) > 0:
				return errors.New("pass an identity or --all, not both")
			case !all && len(args) == 0:
				return errors.New("an identity or --all is required")
			case !all:
				target = args[0]
			}

			guard, store, err := ctx.openGuard()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := guard.ForceRelease(cmd.Context(), target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case removed == 0 && all:
				fmt.Fprintln(out, "No running daemons")
			case removed == 0:
				fmt.Fprintf(out, "No running daemon for %s\n", target)
			case all:
				fmt.Fprintf(out, "Stop requested for %d daemon(s)\n", removed)
			default:
				fmt.Fprintf(out, "Stop requested for %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Stop every daemon")
	return cmd
}
