package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"echopress/internal/config"
	"echopress/internal/daemon"
	"echopress/internal/ipc"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/testsupport"
)

type ipcHarness struct {
	cfg     *config.Config
	store   *queue.Store
	daemon  *daemon.Daemon
	client  *ipc.Client
	logPath string
	stopped chan struct{}
}

func newIPCHarness(t *testing.T) *ipcHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	orch := testsupport.NewOrchestrator(t, cfg, store)
	logPath := filepath.Join(cfg.Paths.LogDir, "ipc-test.log")
	d, err := daemon.New(cfg, store, logging.NewNop(), orch, logPath, logging.NewStreamHub(64))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopped := make(chan struct{})
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop(), ipc.WithShutdown(func() { close(stopped) }))
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return &ipcHarness{cfg: cfg, store: store, daemon: d, client: client, logPath: logPath, stopped: stopped}
}

func TestSubmitPollDraftOverIPC(t *testing.T) {
	h := newIPCHarness(t)
	path := testsupport.WriteRecording(t, testsupport.BaseDir(h.cfg), "episode.wav")

	submitted, err := h.client.Submit(ipc.SubmitRequest{RecordingRef: path, Title: "Episode"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	again, err := h.client.Submit(ipc.SubmitRequest{RecordingRef: path})
	if err != nil {
		t.Fatalf("Submit again: %v", err)
	}
	if again.RunID != submitted.RunID {
		t.Fatalf("duplicate submit returned %s, want %s", again.RunID, submitted.RunID)
	}

	testsupport.WaitForRun(t, h.daemon.Orchestrator(), submitted.RunID)

	polled, err := h.client.Poll(submitted.RunID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if polled.Run.Status != string(queue.StatusCompleted) {
		t.Fatalf("expected completed run, got %s (%s)", polled.Run.Status, polled.Run.ErrorMessage)
	}
	if len(polled.Run.Log) == 0 {
		t.Fatal("expected run log in poll response")
	}

	draftResp, err := h.client.Draft(submitted.RunID, true)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draftResp.Draft == nil || !strings.HasPrefix(draftResp.Markdown, "# ") {
		t.Fatalf("unexpected draft response: %+v", draftResp)
	}

	list, err := h.client.List(ipc.ListRequest{Statuses: []string{"completed"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Runs) != 1 {
		t.Fatalf("expected one completed run, got %d", len(list.Runs))
	}

	health, err := h.client.RunHealth()
	if err != nil {
		t.Fatalf("RunHealth: %v", err)
	}
	if health.Total != 1 || health.Completed != 1 {
		t.Fatalf("unexpected run health: %+v", health)
	}
}

func TestIPCErrorsCarryKind(t *testing.T) {
	h := newIPCHarness(t)

	if _, err := h.client.Poll("missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := h.client.Submit(ipc.SubmitRequest{}); err == nil || !strings.Contains(err.Error(), "input error") {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, err := h.client.Draft("missing", false); err == nil {
		t.Fatal("expected draft error for unknown run")
	}
}

func TestStatusAndDatabaseHealth(t *testing.T) {
	h := newIPCHarness(t)

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.SocketPath != h.cfg.SocketPath() {
		t.Fatalf("socket path = %q, want %q", status.SocketPath, h.cfg.SocketPath())
	}

	db, err := h.client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !db.DatabaseExists || !db.IntegrityCheck {
		t.Fatalf("unexpected database health: %+v", db)
	}

	notify, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}
}

func TestLogTailOverIPC(t *testing.T) {
	h := newIPCHarness(t)
	if err := os.WriteFile(h.logPath, []byte("first run=a\nsecond run=b\nthird run=a\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	resp, err := h.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second run=b" {
		t.Fatalf("unexpected tail: %#v", resp.Lines)
	}

	filtered, err := h.client.LogTail(ipc.LogTailRequest{Offset: 0, RunID: "run=a"})
	if err != nil {
		t.Fatalf("LogTail filtered: %v", err)
	}
	if len(filtered.Lines) != 2 {
		t.Fatalf("expected two lines for run a, got %#v", filtered.Lines)
	}

	done := make(chan []string, 1)
	go func(offset int64) {
		resp, err := h.client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow: %v", err)
			done <- nil
			return
		}
		done <- resp.Lines
	}(resp.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(h.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	_, _ = f.WriteString("fourth\n")
	f.Close()

	select {
	case lines := <-done:
		if len(lines) != 1 || lines[0] != "fourth" {
			t.Fatalf("unexpected follow lines: %#v", lines)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return")
	}
}

func TestStopInvokesShutdown(t *testing.T) {
	h := newIPCHarness(t)
	resp, err := h.client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stop acknowledgement")
	}
	select {
	case <-h.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook was not called")
	}
	if h.daemon.Running() {
		t.Fatal("expected daemon to be stopped")
	}
}
