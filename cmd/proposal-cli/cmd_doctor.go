package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitlease/proposals/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, connectivity and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			failed := 0
			for _, r := range doctorChecks(ctx, newClient()) {
				mark := "ok  "
				if !r.Passed {
					mark = "FAIL"
					failed++
				}

				fmt.Printf("[%s] %-18s %s\n", mark, r.Name, r.Detail)
				if !r.Passed && r.Hint != "" {
					fmt.Printf("       %s\n", r.Hint)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}

			return nil
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func pass(name, detail string) checkResult {
	return checkResult{Name: name, Passed: true, Detail: detail}
}

func fail(name, detail, hint string) checkResult {
	return checkResult{Name: name, Detail: detail, Hint: hint}
}

// doctorChecks runs the local checks, then the server ones. Server checks
// stop at the first that cannot succeed.
func doctorChecks(ctx context.Context, c *client.Client) []checkResult {
	path, _ := configPath()

	results := make([]checkResult, 0, 7)
	if _, ok := loadProfile(); ok {
		results = append(results, pass("config file", path))
	} else {
		results = append(results, fail("config file", path, "run: proposal-cli init"))
	}

	results = append(results, pass("server url", flagURL))

	if flagKey == "" {
		results = append(results, fail("api key", "not set", "use --api-key, PROPOSALS_API_KEY or proposal-cli init"))
	} else {
		results = append(results, pass("api key", "configured"))
	}

	actor := flagRole
	if flagActorID != "" {
		actor += " " + flagActorID
	}
	results = append(results, pass("acting as", actor))

	health, err := c.Health(ctx)
	if err != nil {
		return append(results, fail("server reachable", flagURL, fmt.Sprintf("is proposald running? %v", err)))
	}
	results = append(results, pass("server reachable", fmt.Sprintf("v%s, schema %d", health.Version, health.SchemaVersion)))

	if ready, err := c.Ready(ctx); err != nil {
		results = append(results, fail("server ready", "", fmt.Sprintf("database or schema unavailable: %v", err)))
	} else {
		results = append(results, pass("server ready", ready.Status))
	}

	if flagKey == "" {
		return results
	}

	if _, _, err := c.Proposals.List(ctx, &client.ListOptions{Limit: 1}); err != nil {
		return append(results, fail("authentication", "", fmt.Sprintf("check the key and role: %v", err)))
	}

	return append(results, pass("authentication", "accepted"))
}
