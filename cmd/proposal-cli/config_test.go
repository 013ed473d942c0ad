package main

import (
	"os"
	"path/filepath"
	"testing"
)

// resetFlags restores global flag state after each test.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct {
		url, key, fmt, role, actor string
		override                   bool
	}{flagURL, flagKey, flagFmt, flagRole, flagActorID, flagOverride}
	t.Cleanup(func() {
		flagURL = orig.url
		flagKey = orig.key
		flagFmt = orig.fmt
		flagRole = orig.role
		flagActorID = orig.actor
		flagOverride = orig.override
	})

	flagURL = defaultURL
	flagKey = ""
	flagRole = ""
	flagActorID = ""
	flagOverride = false
}

// unsetEnv temporarily unsets an environment variable and restores it on cleanup.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, exists := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if exists {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

// cleanEnv clears every PROPOSALS_* variable and points HOME at a temp dir.
func cleanEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"PROPOSALS_URL", "PROPOSALS_API_KEY", "PROPOSALS_ROLE", "PROPOSALS_ACTOR_ID"} {
		unsetEnv(t, k)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfigFile(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".proposals")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// TestResolveConfigEnv verifies that PROPOSALS_* variables fill unset flags.
func TestResolveConfigEnv(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)
	t.Setenv("PROPOSALS_URL", "http://env-server:9090")
	t.Setenv("PROPOSALS_API_KEY", "secret-key-from-env")
	t.Setenv("PROPOSALS_ROLE", "host")
	t.Setenv("PROPOSALS_ACTOR_ID", "h-42")

	resolveConfig()

	if flagURL != "http://env-server:9090" {
		t.Errorf("flagURL: got %q", flagURL)
	}
	if flagKey != "secret-key-from-env" {
		t.Errorf("flagKey: got %q", flagKey)
	}
	if flagRole != "host" || flagActorID != "h-42" {
		t.Errorf("actor: got %q/%q", flagRole, flagActorID)
	}
}

// TestResolveConfigDefaultRole verifies the CLI acts as the platform by default.
func TestResolveConfigDefaultRole(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)

	resolveConfig()

	if flagRole != "platform" {
		t.Errorf("flagRole: got %q, want platform", flagRole)
	}
	if flagURL != defaultURL {
		t.Errorf("flagURL should stay default; got %q", flagURL)
	}
}

// TestResolveConfigFlagTakesPrecedenceOverEnv verifies that an explicit flag
// value is not overridden by the environment variable.
func TestResolveConfigFlagTakesPrecedenceOverEnv(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)
	t.Setenv("PROPOSALS_URL", "http://env-server:9090")
	t.Setenv("PROPOSALS_ROLE", "guest")

	flagURL = "http://explicit-flag:1234"
	flagRole = "host"
	resolveConfig()

	if flagURL != "http://explicit-flag:1234" {
		t.Errorf("explicit flag should win; got %q", flagURL)
	}
	if flagRole != "host" {
		t.Errorf("explicit role should win; got %q", flagRole)
	}
}

// TestResolveConfigFlatYAML verifies that a flat-format config file is read.
func TestResolveConfigFlatYAML(t *testing.T) {
	resetFlags(t)
	home := cleanEnv(t)
	writeConfigFile(t, home, "url: http://from-file:8080\napi_key: file-key\n")

	resolveConfig()

	if flagURL != "http://from-file:8080" {
		t.Errorf("flagURL from flat config: got %q", flagURL)
	}
	if flagKey != "file-key" {
		t.Errorf("flagKey from flat config: got %q", flagKey)
	}
}

// TestResolveConfigProfileYAML verifies that the active profile is used,
// including its acting role.
func TestResolveConfigProfileYAML(t *testing.T) {
	resetFlags(t)
	home := cleanEnv(t)
	writeConfigFile(t, home, `
active_profile: support
profiles:
  default:
    url: http://default:3040
    api_key: default-key
  support:
    url: http://support:4040
    api_key: support-key
    role: platform
    actor_id: ops-7
`)

	resolveConfig()

	if flagURL != "http://support:4040" || flagKey != "support-key" {
		t.Errorf("profile: got %q/%q", flagURL, flagKey)
	}
	if flagActorID != "ops-7" {
		t.Errorf("actor id from profile: got %q", flagActorID)
	}
}

// TestResolveConfigInvalidYAML verifies that a malformed config file is
// silently ignored.
func TestResolveConfigInvalidYAML(t *testing.T) {
	resetFlags(t)
	home := cleanEnv(t)
	writeConfigFile(t, home, ":::not-yaml:::")

	resolveConfig() // must not panic

	if flagURL != defaultURL {
		t.Errorf("flagURL should stay default on bad YAML; got %q", flagURL)
	}
}

// TestResolveConfigEnvNotOverriddenByFile verifies that env vars take
// precedence over config file values.
func TestResolveConfigEnvNotOverriddenByFile(t *testing.T) {
	resetFlags(t)
	home := cleanEnv(t)
	t.Setenv("PROPOSALS_API_KEY", "env-wins-key")
	writeConfigFile(t, home, "url: http://file:9000\napi_key: file-key\n")

	resolveConfig()

	if flagKey != "env-wins-key" {
		t.Errorf("flagKey should be env value; got %q", flagKey)
	}
	if flagURL != "http://file:9000" {
		t.Errorf("flagURL should come from file; got %q", flagURL)
	}
}

// TestWriteConfigRoundTrip verifies init writes a profile resolveConfig reads back.
func TestWriteConfigRoundTrip(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)

	path, err := writeConfig(configProfile{URL: "http://written:3040", APIKey: "written-key", Role: "host"})
	if err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	resolveConfig()

	if flagURL != "http://written:3040" || flagKey != "written-key" || flagRole != "host" {
		t.Errorf("round trip: got %q/%q/%q", flagURL, flagKey, flagRole)
	}
}
