package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/splitlease/proposals/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const (
	defaultURL  = "http://localhost:3040"
	defaultRole = "platform"
)

var (
	apiClient    *client.Client
	flagURL      string
	flagKey      string
	flagFmt      string
	flagRole     string
	flagActorID  string
	flagOverride bool
	flagRetries  int
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("proposal-cli version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("proposal-cli version %s-dev", version)
}

type configFile struct {
	// Flat format
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Role    string `yaml:"role,omitempty"`
	ActorID string `yaml:"actor_id,omitempty"`
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "proposal-cli",
		Short:   "Operate the rental proposal lifecycle service",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			apiClient = newClient()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	addGlobalFlags(rootCmd)

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup
	doctorCmd := newDoctorCmd()
	doctorCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) { resolveConfig() }

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(newProposalCmd())
	rootCmd.AddCommand(newMeetingCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newAdminCmd())
	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Proposal service URL (env: PROPOSALS_URL)")
	cmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: PROPOSALS_API_KEY)")
	cmd.PersistentFlags().StringVar(&flagFmt, "format", fmtJSON, "Output format: json|table|quiet")
	cmd.PersistentFlags().StringVar(&flagRole, "as", "", "Acting role: guest|host|platform (env: PROPOSALS_ROLE, default platform)")
	cmd.PersistentFlags().StringVar(&flagActorID, "actor-id", "", "Acting party ID (env: PROPOSALS_ACTOR_ID)")
	cmd.PersistentFlags().BoolVar(&flagOverride, "override", false, "Apply platform calls to finalized proposals")
	cmd.PersistentFlags().IntVar(&flagRetries, "retries", 2, "Retries when the proposal is busy with another change")
}

func newClient() *client.Client {
	opts := []client.Option{client.WithActor(flagRole, flagActorID), client.WithRetries(flagRetries)}
	if flagKey != "" {
		opts = append(opts, client.WithAPIKey(flagKey))
	}
	if flagOverride {
		opts = append(opts, client.WithOverride())
	}
	return client.New(flagURL, opts...)
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("PROPOSALS_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("PROPOSALS_API_KEY")
	}
	if flagRole == "" {
		flagRole = os.Getenv("PROPOSALS_ROLE")
	}
	if flagActorID == "" {
		flagActorID = os.Getenv("PROPOSALS_ACTOR_ID")
	}

	if p, ok := loadProfile(); ok {
		if flagURL == defaultURL && p.URL != "" {
			flagURL = p.URL
		}
		if flagKey == "" {
			flagKey = p.APIKey
		}
		if flagRole == "" {
			flagRole = p.Role
		}
		if flagActorID == "" {
			flagActorID = p.ActorID
		}
	}

	if flagRole == "" {
		flagRole = defaultRole
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".proposals", "config.yaml"), nil
}

// loadProfile reads the active profile, falling back to the flat format.
func loadProfile() (configProfile, bool) {
	cfgPath, err := configPath()
	if err != nil {
		return configProfile{}, false
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return configProfile{}, false
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return configProfile{}, false
	}

	resolved := configProfile{URL: cfg.URL, APIKey: cfg.APIKey}
	if cfg.Profiles != nil {
		name := cfg.ActiveProfile
		if name == "" {
			name = "default"
		}
		if p, ok := cfg.Profiles[name]; ok {
			if p.URL != "" {
				resolved.URL = p.URL
			}
			if p.APIKey != "" {
				resolved.APIKey = p.APIKey
			}
			resolved.Role = p.Role
			resolved.ActorID = p.ActorID
		}
	}
	return resolved, true
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
