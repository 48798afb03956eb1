package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tickd/internal/liveness"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List identities whose liveness flag is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			guard, store, err := ctx.openGuard()
			if err != nil {
				return err
			}
			defer store.Close()

			holders, err := guard.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if holders == nil {
					holders = []liveness.Holder{}
				}
				return encoder.Encode(holders)
			}
			if len(holders) == 0 {
				fmt.Fprintln(out, "No running daemons")
				return nil
			}
			fmt.Fprintln(out, renderHolders(holders, time.Now(), shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderHolders(holders []liveness.Holder, now time.Time, colorize bool) string {
	headers := []string{"Identity", "PID", "Host", "Running For", "Instance"}
	rows := make([][]string, 0, len(holders))
	for _, h := range holders {
		pid := "-"
		if h.PID > 0 {
			pid = strconv.Itoa(h.PID)
		}
		host := h.Host
		if host == "" {
			host = "-"
		}
		age := "-"
		if !h.AcquiredAt.IsZero() {
			age = now.Sub(h.AcquiredAt).Round(time.Second).String()
		}
		instance := h.InstanceID
		if instance == "" {
			instance = "-"
		}
		rows = append(rows, []string{h.Identity, pid, host, age, instance})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft}, colorize)
}
