package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"echopress/internal/config"
	"echopress/internal/draft"
	"echopress/internal/fileutil"
	"echopress/internal/generation"
	"echopress/internal/grounding"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services"
	"echopress/internal/stage"
	"echopress/internal/transcript"
)

// validationStage resolves the recording and the voice profile for a run.
type validationStage struct {
	resolver *recording.Resolver
	profiles *recording.ProfileStore
	cfg      *config.Config
}

func (s *validationStage) Execute(ctx context.Context, j *job) error {
	if s.resolver == nil {
		return services.Wrap(services.ErrConfiguration, "validation", "resolve", "recording resolver not configured", nil)
	}
	audio, err := s.resolver.Resolve(ctx, j.req.RecordingRef)
	if err != nil {
		return err
	}
	j.audio = audio
	if audio.Downloaded {
		j.record("info", fmt.Sprintf("recording downloaded to %s", audio.Path))
	}
	if audio.Duration > 0 {
		j.record("info", fmt.Sprintf("recording is %s long", audio.Duration.Round(time.Second)))
	}

	style := j.req.Profile
	outline := j.req.Outline
	if name := strings.TrimSpace(j.req.ProfileName); name != "" {
		profile, err := s.profiles.Load(name)
		if err != nil {
			return err
		}
		if style == nil {
			copied := profile.Style
			style = &copied
		} else {
			style = style.Merge(profile.BannedTerms)
		}
		if outline == nil {
			outline = profile.Outline
		}
		j.record("info", fmt.Sprintf("voice profile %q loaded", profile.Name))
	}
	j.style = style.Merge(s.cfg.Generation.BannedTerms)
	if outline != nil && len(outline.Sections) > 0 {
		j.outline = outline
	}
	return nil
}

func (s *validationStage) HealthCheck(context.Context) stage.Health {
	return stage.Assess("validation",
		stage.Requires(s.resolver != nil, "recording resolver not configured"),
		stage.Requires(strings.TrimSpace(s.cfg.Paths.StagingDir) != "", "staging_dir not configured"),
	)
}

// transcriptionStage produces the run's segments, reusing a stored checkpoint
// for the same recording and language when one exists.
type transcriptionStage struct {
	segmenter *transcript.Segmenter
	store     *queue.Store
	cfg       *config.Config
}

// Restore loads a stored checkpoint for the run's recording and language into
// j. executeStage calls it before admission, so a run that restores one never
// waits on the transcription gate.
func (s *transcriptionStage) Restore(ctx context.Context, j *job) bool {
	cached, ok, err := s.store.LoadSegments(ctx, j.run.Recording, s.language(j))
	if err != nil {
		logging.WarnWithContext(j.logger, "transcript checkpoint unavailable; transcribing again", "checkpoint_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "transcription providers are called again"),
		)
		return false
	}
	if !ok || len(cached) == 0 {
		return false
	}
	if err := transcript.Validate(cached); err != nil {
		logging.WarnWithContext(j.logger, "transcript checkpoint invalid; transcribing again", "checkpoint_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the checkpoint predates current segment rules"),
			logging.String(logging.FieldImpact, "transcription providers are called again"),
		)
		return false
	}
	j.segments = cached
	return true
}

func (s *transcriptionStage) Execute(ctx context.Context, j *job) error {
	if len(j.segments) > 0 {
		j.record("info", fmt.Sprintf("reused transcript checkpoint with %d segments", len(j.segments)))
		return nil
	}
	language := s.language(j)

	if s.segmenter == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "segment", "no segmenter configured", nil)
	}
	segments, err := s.segmenter.Segment(ctx, j.audio.Path, language)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return services.Wrap(services.ErrInput, "transcription", "segment", "recording produced no speech segments", nil)
	}
	if err := transcript.Validate(segments); err != nil {
		return services.Wrap(services.ErrProviderFailure, "transcription", "validate segments", "recognizer returned malformed segments", err)
	}
	j.segments = segments
	j.record("info", fmt.Sprintf("transcribed %d segments", len(segments)))

	if err := s.store.SaveSegments(ctx, j.run.Recording, language, segments); err != nil {
		logging.WarnWithContext(j.logger, "transcript checkpoint not saved", "checkpoint_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "a resubmission will transcribe again"),
		)
	}
	return nil
}

func (s *transcriptionStage) language(j *job) string {
	if language := strings.TrimSpace(j.req.Language); language != "" {
		return language
	}
	return s.cfg.Transcription.Language
}

func (s *transcriptionStage) HealthCheck(context.Context) stage.Health {
	return stage.Assess("transcription", stage.Requires(s.segmenter != nil, "no segmenter configured"))
}

// generationStage builds the grounding index and writes the article.
type generationStage struct {
	generator *generation.Generator
	cfg       *config.Config
}

func (s *generationStage) Execute(ctx context.Context, j *job) error {
	if s.generator == nil {
		return services.Wrap(services.ErrConfiguration, "generation", "article", "no generator configured", nil)
	}
	j.index = grounding.Build(j.segments, grounding.WithThreshold(s.cfg.Generation.RelevanceThreshold))

	span := float64(progressGenerated - progressTranscribed)
	article, err := s.generator.Article(ctx, generation.ArticleInput{
		Title:    j.run.Title,
		Segments: j.segments,
		Index:    j.index,
		Style:    j.style,
		Outline:  j.outline,
	}, func(done, total int) {
		if total <= 0 {
			return
		}
		value := progressTranscribed + span*float64(done)/float64(total)
		j.progress(value, fmt.Sprintf("generated %d of %d parts", done, total))
	})
	if err != nil {
		return err
	}
	j.article = article
	return nil
}

func (s *generationStage) HealthCheck(context.Context) stage.Health {
	return stage.Assess("generation",
		stage.Requires(s.generator != nil, "no generator configured"),
		stage.Requires(strings.TrimSpace(s.cfg.LLM.APIKey) != "", "llm api_key not configured"),
	)
}

// finalizationStage assembles the draft and persists it with a markdown copy.
type finalizationStage struct {
	store    *queue.Store
	draftDir string
	now      func() time.Time
}

func (s *finalizationStage) Execute(ctx context.Context, j *job) error {
	d, err := draft.Assemble(draft.Input{
		RunID:     j.run.ID,
		Recording: j.run.RecordingRef,
		Article:   j.article,
		Segments:  j.segments,
		Now:       s.now(),
	})
	if err != nil {
		return err
	}
	// Nothing is stored for a run cancelled before its draft exists. A cancel
	// landing after this point is undone by discardDraft.
	if j.cancelRequested.Load() {
		return cancelledError("finalization")
	}
	if err := s.store.SaveDraft(ctx, d); err != nil {
		return services.Wrap(services.ErrConfiguration, "finalization", "save draft", "draft could not be stored", err)
	}
	j.draft = d
	if dir := strings.TrimSpace(s.draftDir); dir != "" {
		path, err := writeMarkdown(dir, d)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "finalization", "write draft", "draft_dir not writable", err)
		}
		j.draftPath = path
		j.record("info", fmt.Sprintf("draft written to %s", path))
	}
	return nil
}

func (s *finalizationStage) HealthCheck(context.Context) stage.Health {
	return stage.Assess("finalization", stage.Requires(s.store != nil, "queue store not configured"))
}

func writeMarkdown(dir string, d draft.Draft) (string, error) {
	path := filepath.Join(dir, d.ID+".md")
	if err := fileutil.WriteAtomic(path, []byte(draft.RenderMarkdown(d)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
