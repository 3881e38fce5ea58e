package workflow

import (
	"log/slog"
	"sync/atomic"
	"time"

	"echopress/internal/draft"
	"echopress/internal/generation"
	"echopress/internal/grounding"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/stage"
	"echopress/internal/transcript"
)

// Progress checkpoints of the linear pipeline.
const (
	progressValidated    = 5
	progressTranscribing = 10
	progressTranscribed  = 50
	progressGenerated    = 90
	progressCompleted    = 100
)

type pipelineStage struct {
	name    string
	handler stage.Handler[*job]
	// processing is entered before the handler runs; empty for stages that
	// have no in-flight status (validation).
	processing queue.Status
	done       queue.Status
	// startProgress applies on entering processing, doneProgress on done.
	startProgress float64
	doneProgress  float64
	timeout       time.Duration
	// gated stages wait on the global transcription admission gate.
	gated bool
}

// job is the run-scoped work state. Artifacts are written only by the run's
// own goroutine; run is shared with pollers and guarded by Orchestrator.mu.
type job struct {
	run    *queue.Run
	req    Request
	logger *slog.Logger

	cancelRequested atomic.Bool
	// abortWait releases a run queued on the admission gate.
	abortWait func()
	closeLog  func()

	// record appends a run log entry and publishes it as a log event.
	record func(level, message string)
	// progress raises run progress within the current stage.
	progress func(value float64, message string)

	audio    recording.Audio
	style    *generation.Style
	outline  *generation.Outline
	segments []transcript.Segment
	index    *grounding.Index
	article  generation.Article
	draft    draft.Draft
	// draftPath is the markdown copy of draft, when one was written.
	draftPath string
}

func (o *Orchestrator) configureStages(deps Deps) []pipelineStage {
	return []pipelineStage{
		{
			name:         "validation",
			handler:      &validationStage{resolver: deps.Resolver, profiles: deps.Profiles, cfg: o.cfg},
			done:         queue.StatusValidated,
			doneProgress: progressValidated,
		},
		{
			name:          "transcription",
			handler:       &transcriptionStage{segmenter: deps.Segmenter, store: o.store, cfg: o.cfg},
			processing:    queue.StatusTranscribing,
			done:          queue.StatusTranscribed,
			startProgress: progressTranscribing,
			doneProgress:  progressTranscribed,
			timeout:       o.cfg.TranscriptionTimeout(),
			gated:         true,
		},
		{
			name:          "generation",
			handler:       &generationStage{generator: deps.Generator, cfg: o.cfg},
			processing:    queue.StatusGenerating,
			done:          queue.StatusGenerated,
			startProgress: progressTranscribed,
			doneProgress:  progressGenerated,
			timeout:       o.cfg.GenerationTimeout(),
		},
		{
			name:          "finalization",
			handler:       &finalizationStage{store: o.store, draftDir: o.cfg.Paths.DraftDir, now: o.now},
			processing:    queue.StatusFinalizing,
			done:          queue.StatusCompleted,
			startProgress: progressGenerated,
			doneProgress:  progressCompleted,
		},
	}
}
