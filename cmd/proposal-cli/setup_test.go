package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/splitlease/proposals/client"
)

func fakeServer(t *testing.T, ready bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(client.HealthResponse{Status: "ok", Version: "1.0.0", SchemaVersion: 3}) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/v1/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(client.ReadyResponse{Status: "ready"}) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/v1/proposals", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"unauthorized","message":"invalid api key"}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"proposals":[],"has_more":false}`)) //nolint:errcheck
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestPromptProfile(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("\nmy-key\nhost\n\n"))
	p := configProfile{Role: defaultRole}

	promptProfile(in, io.Discard, &p)

	if p.URL != defaultURL || p.APIKey != "my-key" || p.Role != "host" || p.ActorID != "" {
		t.Errorf("profile = %+v", p)
	}
}

func TestRunInit(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)
	srv := fakeServer(t, true)

	captureStdout(t, func() {
		if err := runInit(configProfile{URL: srv.URL, APIKey: "good-key", Role: "janitor"}, false); err == nil {
			t.Error("unknown role accepted")
		}
		if err := runInit(configProfile{URL: srv.URL, Role: "host"}, false); err == nil {
			t.Error("missing key accepted")
		}
		if err := runInit(configProfile{URL: srv.URL, APIKey: "good-key", Role: "guest", ActorID: "g-7"}, false); err != nil {
			t.Errorf("runInit: %v", err)
		}
	})

	p, ok := loadProfile()
	if !ok || p.URL != srv.URL || p.Role != "guest" || p.ActorID != "g-7" {
		t.Errorf("saved profile = %+v", p)
	}
}

func TestWriteConfigKeepsOtherProfiles(t *testing.T) {
	resetFlags(t)
	home := cleanEnv(t)
	writeConfigFile(t, home, `
active_profile: staging
profiles:
  prod:
    url: http://prod:3040
    api_key: prod-key
`)

	if _, err := writeConfig(configProfile{URL: "http://staging:3040", APIKey: "staging-key", Role: "host"}); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	resolveConfig()
	if flagURL != "http://staging:3040" || flagKey != "staging-key" {
		t.Errorf("active profile: %q/%q", flagURL, flagKey)
	}

	cfgPath, _ := configPath()
	data := readFile(t, cfgPath)
	if !strings.Contains(data, "prod-key") {
		t.Errorf("prod profile lost:\n%s", data)
	}
}

func TestDoctorChecks(t *testing.T) {
	resetFlags(t)
	cleanEnv(t)

	srv := fakeServer(t, false)
	flagURL, flagKey, flagRole = srv.URL, "bad-key", "platform"

	results := doctorChecks(context.Background(), newClient())

	got := map[string]bool{}
	for _, r := range results {
		got[r.Name] = r.Passed
	}

	want := map[string]bool{
		"config file":      false,
		"server url":       true,
		"api key":          true,
		"acting as":        true,
		"server reachable": true,
		"server ready":     false,
		"authentication":   false,
	}
	for name, passed := range want {
		if v, ok := got[name]; !ok || v != passed {
			t.Errorf("%s: passed=%v present=%v, want passed=%v", name, v, ok, passed)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return string(data)
}
