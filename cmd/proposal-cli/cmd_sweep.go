package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitlease/proposals/client"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Maintenance sweeps, meant to be run from cron",
	}
	cmd.AddCommand(sweepExpireCmd())
	return cmd
}

func sweepExpireCmd() *cobra.Command {
	var olderThan time.Duration
	var limit int
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Cancel proposals that have not moved within the window",
		Long: `Cancels every non-terminal proposal whose last change is older than
--older-than, as the platform with reason "expired". The server default
window (STALE_AFTER) applies when --older-than is not given.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if flagRole != "platform" {
				fatal("expire", fmt.Errorf("sweeps run as the platform, not %q", flagRole))
			}
			res, err := apiClient.Admin.Expire(context.Background(), &client.ExpireOptions{
				OlderThan: olderThan,
				Limit:     limit,
			})
			if err != nil {
				fatal("expire", err)
			}
			if flagFmt == fmtTable {
				formatTable(
					[]string{"METRIC", "VALUE"},
					[][]string{
						{"Scanned", strconv.Itoa(res.Scanned)},
						{"Cancelled", strconv.Itoa(len(res.Cancelled))},
						{"Skipped", strconv.Itoa(len(res.Skipped))},
					},
				)
				return
			}
			output(res, strconv.Itoa(len(res.Cancelled)))
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Inactivity window, e.g. 336h")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max proposals per run (server default 100)")
	return cmd
}
