package testsupport

import (
	"context"
	"testing"
	"time"

	"echopress/internal/config"
	"echopress/internal/generation"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services/llm"
	"echopress/internal/transcript"
	"echopress/internal/workflow"
)

// StaticRecognizer returns the same segments for every recording.
type StaticRecognizer struct {
	Segments []transcript.RecognizedSegment
}

func (s StaticRecognizer) Recognize(ctx context.Context, audioPath, language string) (transcript.Recognition, error) {
	return transcript.Recognition{Language: language, Segments: s.Segments}, nil
}

// StaticLLM answers every prose request with Prose and every JSON request
// with a fixed takeaway list.
type StaticLLM struct {
	Prose string
}

func (s StaticLLM) Generate(_ context.Context, req llm.Request) (llm.Reply, error) {
	switch {
	case req.JSON:
		return llm.Reply{Text: `["Pricing follows the customer"]`, FinishReason: "stop"}, nil
	case s.Prose == "":
		return llm.Reply{Text: "The guests walked through how their pricing strategy changed.", FinishReason: "stop"}, nil
	}
	return llm.Reply{Text: s.Prose, FinishReason: "stop"}, nil
}

// InterviewSegments is a short two-speaker transcript about pricing.
func InterviewSegments() []transcript.RecognizedSegment {
	score := 0.92
	return []transcript.RecognizedSegment{
		{Start: 0, End: 4, Text: "Our pricing strategy changed completely this year", Speaker: "A", Confidence: &score},
		{Start: 4, End: 9, Text: "The new pricing strategy targets enterprise buyers", Speaker: "B", Confidence: &score},
	}
}

// NewOrchestrator builds an orchestrator over store with canned providers. It is shut down on cleanup.
func NewOrchestrator(t testing.TB, cfg *config.Config, store *queue.Store) *workflow.Orchestrator {
	t.Helper()
	logger := logging.NewNop()
	orch := workflow.NewOrchestrator(cfg, store, workflow.Deps{
		Resolver:  recording.NewResolver(cfg, logger),
		Profiles:  recording.NewProfileStore(cfg.Paths.ProfilesDir),
		Segmenter: transcript.NewSegmenter(StaticRecognizer{Segments: InterviewSegments()}, nil, logger),
		Generator: generation.NewGenerator(StaticLLM{}, generation.Options{TopK: 2}, logger),
	}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return orch
}

// WaitForRun polls until the run reaches a terminal status.
func WaitForRun(t testing.TB, orch *workflow.Orchestrator, runID string) *queue.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, err := orch.Poll(context.Background(), runID)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if run.Status.IsTerminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for run %s", runID)
	return nil
}
