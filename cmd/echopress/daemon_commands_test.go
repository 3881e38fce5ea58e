package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"echopress/internal/queue"
	"echopress/internal/testsupport"
)

func TestStatusShowsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewRun(t, env.store, "run-done", "/tmp/done.wav", queue.StatusCompleted)

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "[OK] Running (pid")
	requireContains(t, out, "Transcription slots")
	requireContains(t, out, "== Runs ==")
	requireContains(t, out, "Completed")

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode status json: %v", err)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN] Not running")
	requireContains(t, out, "No runs yet")
}

func TestStopWithoutDaemonReportsNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"stop"}, "", configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestClientCommandsExplainMissingDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"cancel", "run-1"}, socket, configPath)
	if err == nil || !strings.Contains(err.Error(), "echopress start") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}
}

func TestRunsReadStoreWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRun(t, store, "run-old", "/audio/old.wav", queue.StatusFailed)

	socket := filepath.Join(t.TempDir(), "missing.sock")
	out, stderr, err := runCLI(t, []string{"runs"}, socket, configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "run-old")
	requireContains(t, stderr, "Daemon not running")

	out, _, err = runCLI(t, []string{"status", "run-old"}, socket, configPath)
	if err != nil {
		t.Fatalf("status run-old: %v", err)
	}
	requireContains(t, out, "Failed")
}

func TestHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewRun(t, env.store, "run-bad", "/tmp/bad.wav", queue.StatusFailed)

	out, _, err := env.run(t, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "== Database ==")
	requireContains(t, out, "Integrity")
}
