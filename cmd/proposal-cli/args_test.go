package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeArgs runs the given root command with args and returns any error.
// It suppresses cobra's usage/error output so test output stays clean.
func executeArgs(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return err
}

// stubRuns replaces every Run in the tree so only argument and flag
// validation is exercised.
func stubRuns(cmd *cobra.Command) {
	if cmd.Run != nil {
		cmd.Run = func(*cobra.Command, []string) {}
	}
	for _, sub := range cmd.Commands() {
		stubRuns(sub)
	}
}

// newTestRoot builds the real command tree with client setup and every
// Run stubbed out.
func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	resetFlags(t)

	root := newRootCmd()
	root.PersistentPreRun = func(*cobra.Command, []string) {}
	stubRuns(root)
	return root
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"get needs an id", []string{"proposal", "get"}, true},
		{"get with id", []string{"proposal", "get", "p1"}, false},
		{"alias p", []string{"p", "accept", "p1"}, false},
		{"accept rejects extra args", []string{"proposal", "accept", "p1", "p2"}, true},
		{"counter needs a change", []string{"proposal", "counter", "p1"}, true},
		{"counter with changes", []string{"proposal", "counter", "p1", "nightly_price=150", "reservation_weeks=10"}, false},
		{"draft needs slot and ref", []string{"proposal", "draft", "p1", "tenancy_agreement"}, true},
		{"draft complete", []string{"proposal", "draft", "p1", "tenancy_agreement", "doc-1"}, false},
		{"create needs flags", []string{"proposal", "create"}, true},
		{"create complete", []string{"proposal", "create", "--guest", "g1", "--host", "h1", "--listing", "l1"}, false},
		{"create rejects positional", []string{"proposal", "create", "x", "--guest", "g1", "--host", "h1", "--listing", "l1"}, true},
		{"submit needs terms", []string{"proposal", "submit", "p1"}, true},
		{"reject with reason", []string{"proposal", "reject", "p1", "--reason", "dates taken"}, false},
		{"meeting request needs a date", []string{"meeting", "request", "p1"}, true},
		{"meeting request", []string{"meeting", "request", "p1", "2026-04-01", "2026-04-02"}, false},
		{"meeting book needs a date", []string{"meeting", "book", "p1"}, true},
		{"sweep expire", []string{"sweep", "expire", "--older-than", "72h", "--limit", "50"}, false},
		{"sweep expire bad duration", []string{"sweep", "expire", "--older-than", "soon"}, true},
		{"sweep expire rejects positional", []string{"sweep", "expire", "p1"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := executeArgs(t, newTestRoot(t), tc.args...)
			if (err != nil) != tc.wantErr {
				t.Errorf("args %v: err = %v, wantErr %v", tc.args, err, tc.wantErr)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	root := newTestRoot(t)

	err := executeArgs(t, root, "--as", "host", "--actor-id", "h9", "--override", "proposal", "get", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if flagRole != "host" || flagActorID != "h9" || !flagOverride {
		t.Errorf("flags = %q/%q/%v", flagRole, flagActorID, flagOverride)
	}
}
