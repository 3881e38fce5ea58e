package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"echopress/internal/language"
	"echopress/internal/transcript"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = ffmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.model()
}

// Diarizes reports whether recognized segments will carry speaker labels.
func (s *Service) Diarizes() bool {
	return s.cfg.diarizes()
}

// HealthCheck verifies the external binaries are on PATH.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.commandRunner != nil {
		return nil
	}
	for _, name := range []string{uvxCommand, s.ffmpegBinary} {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("whisperx: %s not found: %w", name, err)
		}
	}
	return nil
}

// Recognize converts audioPath to WAV, runs WhisperX and returns its
// segments with times in seconds. Confidence is the mean word score when
// WhisperX reports word alignment.
func (s *Service) Recognize(ctx context.Context, audioPath, lang string) (transcript.Recognition, error) {
	var result transcript.Recognition
	if strings.TrimSpace(audioPath) == "" {
		return result, fmt.Errorf("whisperx: audio path required")
	}
	workRoot := s.cfg.WorkDir
	if workRoot != "" {
		if err := os.MkdirAll(workRoot, 0o755); err != nil {
			return result, fmt.Errorf("whisperx: ensure work dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(workRoot, "whisperx-*")
	if err != nil {
		return result, fmt.Errorf("whisperx: create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := s.run(ctx, s.ffmpegBinary, extractArgs(audioPath, wavPath)...); err != nil {
		return result, fmt.Errorf("whisperx: extract audio: %w", err)
	}
	if err := s.run(ctx, uvxCommand, s.buildArgs(wavPath, workDir, lang)...); err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}

	payload, err := loadPayload(filepath.Join(workDir, "audio.json"))
	if err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}
	result.Language = payload.Language
	if result.Language == "" {
		result.Language = language.ToISO2(lang)
	}
	result.Segments = make([]transcript.RecognizedSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		result.Segments = append(result.Segments, transcript.RecognizedSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       strings.TrimSpace(seg.Text),
			Speaker:    seg.Speaker,
			Confidence: seg.confidence(),
		})
	}
	return result, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs assembles the uvx invocation for one WhisperX run.
func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := append(s.cfg.indexArgs(), "whisperx", source,
		"--model", s.cfg.model(),
		"--output_dir", outputDir,
	)
	args = append(args, decodeFlags...)
	args = append(args, s.cfg.vadArgs()...)
	if code := language.ToISO2(lang); code != "" {
		args = append(args, "--language", code)
	}
	return append(args, s.cfg.deviceArgs()...)
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string   `json:"word"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Score *float64 `json:"score"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Words   []Word  `json:"words"`
}

func (s Segment) confidence() *float64 {
	var total float64
	var count int
	for _, w := range s.Words {
		if w.Score == nil {
			continue
		}
		total += *w.Score
		count++
	}
	if count == 0 {
		return nil
	}
	mean := total / float64(count)
	return &mean
}

type whisperXPayload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func loadPayload(jsonPath string) (whisperXPayload, error) {
	var payload whisperXPayload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, fmt.Errorf("read output: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}
