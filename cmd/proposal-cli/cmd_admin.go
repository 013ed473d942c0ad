package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Service status and the lifecycle registry",
	}
	cmd.AddCommand(adminHealthCmd(), adminReadyCmd(), adminStatusesCmd())

	return cmd
}

func adminHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show liveness, version and connection use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := apiClient.Health(context.Background())
			if err != nil {
				fatal("health", err)
			}

			if flagFmt != fmtTable {
				output(resp, resp.Status)
				return
			}

			rows := [][]string{
				{"status", resp.Status},
				{"version", resp.Version},
				{"database", resp.Database},
				{"schema", strconv.Itoa(resp.SchemaVersion)},
				{"subscribers", strconv.Itoa(resp.Subscribers)},
				{"uptime", strconv.FormatFloat(resp.UptimeSeconds, 'f', 0, 64) + "s"},
			}
			if p := resp.Pool; p != nil {
				rows = append(rows, []string{"connections", strconv.Itoa(int(p.InUse)) + "/" + strconv.Itoa(int(p.Max)) + " in use"})
			}
			formatTable([]string{"CHECK", "VALUE"}, rows)
		},
	}
}

func adminReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check the database and schema are usable",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := apiClient.Ready(context.Background())
			if err != nil {
				fatal("ready", err)
			}
			output(resp, resp.Status)
		},
	}
}

func adminStatusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List every status with its stage and per-role action labels",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			reg, err := apiClient.Admin.Statuses(context.Background())
			if err != nil {
				fatal("statuses", err)
			}

			if flagFmt != fmtTable {
				output(reg, strconv.Itoa(len(reg.Statuses)))
				return
			}

			rows := make([][]string, 0, len(reg.Statuses))
			for _, s := range reg.Statuses {
				var flags []string
				if s.Terminal {
					flags = append(flags, "terminal")
				}
				if s.DeletePermitted {
					flags = append(flags, "deletable")
				}
				rows = append(rows, []string{
					strconv.Itoa(s.UsualOrder), s.Status, strconv.Itoa(s.StageIndex),
					s.GuestActionLabel, s.HostActionLabel, strings.Join(flags, ","),
				})
			}
			formatTable([]string{"ORDER", "STATUS", "STAGE", "GUEST", "HOST", "FLAGS"}, rows)
		},
	}
}
