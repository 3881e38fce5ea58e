package workflow_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"echopress/internal/config"
	"echopress/internal/generation"
	"echopress/internal/logging"
	"echopress/internal/notifications"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services/llm"
	"echopress/internal/testsupport"
	"echopress/internal/transcript"
	"echopress/internal/workflow"
)

type fakeRecognizer struct {
	segments []transcript.RecognizedSegment
	err      error
	calls    atomic.Int32
	// started receives the audio path of every call when set.
	started chan string
	// release blocks calls until closed when set.
	release chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, audioPath, language string) (transcript.Recognition, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- audioPath
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return transcript.Recognition{}, ctx.Err()
		}
	}
	if f.err != nil {
		return transcript.Recognition{}, f.err
	}
	return transcript.Recognition{Language: language, Segments: f.segments}, nil
}

func conf(v float64) *float64 { return &v }

// pricingSegments mirrors a short interview: two on-topic spans and one aside.
func pricingSegments() []transcript.RecognizedSegment {
	return []transcript.RecognizedSegment{
		{Start: 0, End: 4, Text: "Our pricing strategy changed completely this year", Speaker: "A", Confidence: conf(0.9)},
		{Start: 4, End: 9.5, Text: "The new pricing strategy targets enterprise buyers", Speaker: "B", Confidence: conf(0.95)},
		{Start: 9.5, End: 14, Text: "Weather cooking and travel stories from the weekend", Speaker: "A", Confidence: conf(0.88)},
	}
}

func pricingOutline() *generation.Outline {
	return &generation.Outline{
		Title: "Pricing Lessons",
		Sections: []generation.Descriptor{
			{Title: "Pricing strategy", Description: "how the pricing strategy evolved"},
		},
	}
}

type fakeLLM struct {
	mu      sync.Mutex
	prose   []string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, req llm.Request) (llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return llm.Reply{}, f.err
	}
	if req.JSON {
		return llm.Reply{Text: `["Pricing follows the customer", "Enterprise buyers need clear tiers"]`, FinishReason: "stop"}, nil
	}
	f.prompts = append(f.prompts, req.User)
	if len(f.prose) > 0 {
		reply := f.prose[0]
		f.prose = f.prose[1:]
		return llm.Reply{Text: reply, FinishReason: "stop"}, nil
	}
	return llm.Reply{Text: "The team explained how pricing moved toward larger customers.", FinishReason: "stop"}, nil
}

func (f *fakeLLM) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) snapshot() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type harness struct {
	cfg        *config.Config
	store      *queue.Store
	orch       *workflow.Orchestrator
	recognizer *fakeRecognizer
	llm        *fakeLLM
	notifier   *recordingNotifier
}

func newHarness(t *testing.T, rec *fakeRecognizer, llm *fakeLLM, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return newHarnessWithConfig(t, cfg, rec, llm)
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config, rec *fakeRecognizer, llm *fakeLLM) *harness {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	notifier := &recordingNotifier{}
	gen := generation.NewGenerator(llm, generation.Options{TopK: 2, BannedTermRetries: 1}, logger)
	orch := workflow.NewOrchestrator(cfg, store, workflow.Deps{
		Resolver:  recording.NewResolver(cfg, logger),
		Profiles:  recording.NewProfileStore(cfg.Paths.ProfilesDir),
		Segmenter: transcript.NewSegmenter(rec, nil, logger),
		Generator: gen,
		Notifier:  notifier,
	}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return &harness{cfg: cfg, store: store, orch: orch, recognizer: rec, llm: llm, notifier: notifier}
}

func (h *harness) recordingPath(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WriteRecording(t, testsupport.BaseDir(h.cfg), name)
}

func waitForStatus(t *testing.T, orch *workflow.Orchestrator, runID string, want ...queue.Status) *queue.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, err := orch.Poll(context.Background(), runID)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		for _, status := range want {
			if run.Status == status {
				return run
			}
		}
		if run.Status.IsTerminal() {
			t.Fatalf("run reached %s (%s: %s), wanted %v", run.Status, run.ErrorKind, run.ErrorMessage, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for run %s to reach %v", runID, want)
	return nil
}

func waitForLog(t *testing.T, orch *workflow.Orchestrator, runID, fragment string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, err := orch.Poll(context.Background(), runID)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if hasLog(run, fragment) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log %q on run %s", fragment, runID)
}

func hasLog(run *queue.Run, fragment string) bool {
	for _, entry := range run.Log {
		if strings.Contains(entry.Message, fragment) {
			return true
		}
	}
	return false
}
