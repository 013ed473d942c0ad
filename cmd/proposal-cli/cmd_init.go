package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/splitlease/proposals/client"
)

var actingRoles = []string{"guest", "host", "platform"}

func newInitCmd() *cobra.Command {
	var p configProfile

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write ~/.proposals/config.yaml",
		Long: "Prompts for the server URL and API key, verifies them against the server and\n" +
			"stores them in the active profile. Passing --url or --api-key skips the prompts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := p.URL == "" && p.APIKey == ""
			if interactive {
				promptProfile(bufio.NewReader(os.Stdin), os.Stdout, &p)
			}

			return runInit(p, interactive)
		},
	}

	cmd.Flags().StringVar(&p.URL, "url", "", "Server URL")
	cmd.Flags().StringVar(&p.APIKey, "api-key", "", "Service API key")
	cmd.Flags().StringVar(&p.Role, "role", defaultRole, "Default acting role: guest|host|platform")
	cmd.Flags().StringVar(&p.ActorID, "actor-id", "", "Default acting party ID")

	return cmd
}

func promptProfile(in *bufio.Reader, out io.Writer, p *configProfile) {
	ask := func(label, current string) string {
		if current != "" {
			fmt.Fprintf(out, "  %s [%s]: ", label, current)
		} else {
			fmt.Fprintf(out, "  %s: ", label)
		}

		line, _ := in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			return line
		}

		return current
	}

	fmt.Fprintln(out, "\n  proposal-cli setup")
	fmt.Fprintln(out)

	p.URL = ask("Server URL", defaultURL)
	p.APIKey = ask("API key", "")
	p.Role = ask("Acting role", p.Role)
	p.ActorID = ask("Actor ID", p.ActorID)
}

func runInit(p configProfile, interactive bool) error {
	if p.URL == "" {
		p.URL = defaultURL
	}

	if p.APIKey == "" {
		return errors.New("API key is required")
	}

	if !slices.Contains(actingRoles, p.Role) {
		return fmt.Errorf("role must be one of %s", strings.Join(actingRoles, ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.New(p.URL, client.WithAPIKey(p.APIKey)).Health(ctx)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	path, err := writeConfig(p)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Connected to %s (v%s, schema %d)\n", p.URL, health.Version, health.SchemaVersion)
	fmt.Printf("Config saved to %s\n", path)

	if interactive {
		fmt.Println("\nTry: proposal-cli doctor, proposal-cli proposal list --format table")
	}

	return nil
}

// writeConfig stores p as the active profile. Other profiles already in the
// file are kept.
func writeConfig(p configProfile) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}

	var cfg configFile
	if data, err := os.ReadFile(path); err == nil {
		// A file we cannot parse is replaced rather than merged.
		_ = yaml.Unmarshal(data, &cfg)
	}

	if cfg.ActiveProfile == "" {
		cfg.ActiveProfile = "default"
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]configProfile{}
	}
	cfg.Profiles[cfg.ActiveProfile] = p
	cfg.URL, cfg.APIKey = "", ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}
