package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func fakeRunner(t *testing.T, output string, calls *[]string) func(context.Context, string, ...string) error {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, name)
		if name != uvxCommand {
			return nil
		}
		idx := slices.Index(args, "--output_dir")
		if idx < 0 || idx+1 >= len(args) {
			t.Fatalf("missing --output_dir in %v", args)
		}
		return os.WriteFile(filepath.Join(args[idx+1], "audio.json"), []byte(output), 0o644)
	}
}

func TestRecognizeParsesSegments(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, "")
	var calls []string
	svc.WithCommandRunner(fakeRunner(t, `{
		"language": "en",
		"segments": [
			{"text": " Hello there ", "start": 0.5, "end": 1.75, "speaker": "SPEAKER_00",
			 "words": [{"word": "Hello", "score": 0.8}, {"word": "there", "score": 1.0}]},
			{"text": "No words", "start": 2, "end": 3}
		]
	}`, &calls))

	got, err := svc.Recognize(context.Background(), "/tmp/input.mp3", "english")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if !slices.Equal(calls, []string{ffmpegCommand, uvxCommand}) {
		t.Fatalf("unexpected commands: %v", calls)
	}
	if got.Language != "en" || len(got.Segments) != 2 {
		t.Fatalf("unexpected recognition: %+v", got)
	}
	first := got.Segments[0]
	if first.Text != "Hello there" || first.Speaker != "SPEAKER_00" || first.Start != 0.5 {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	if first.Confidence == nil || *first.Confidence != 0.9 {
		t.Fatalf("expected mean word score 0.9, got %v", first.Confidence)
	}
	if got.Segments[1].Confidence != nil {
		t.Fatal("segment without word scores should have nil confidence")
	}
}

func TestRecognizeSurfacesCommandFailure(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, "")
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name == ffmpegCommand {
			return errors.New("invalid data found when processing input")
		}
		return nil
	})
	_, err := svc.Recognize(context.Background(), "/tmp/broken.mp3", "")
	if err == nil || !strings.Contains(err.Error(), "extract audio") {
		t.Fatalf("expected extract failure, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	svc := NewService(Config{Diarize: true, HFToken: "hf_x"}, "")
	args := svc.buildArgs("/work/audio.wav", "/work", "de-DE")
	joined := strings.Join(args, " ")
	for _, want := range []string{"--diarize", "--hf_token hf_x", "--language de", "--device cpu", "--model " + DefaultModel} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}

	svc = NewService(Config{Diarize: true, CUDAEnabled: true}, "")
	args = svc.buildArgs("/work/audio.wav", "/work", "")
	if slices.Contains(args, "--diarize") {
		t.Fatal("diarize requires a Hugging Face token")
	}
	if slices.Contains(args, "--language") {
		t.Fatal("empty language should let WhisperX detect it")
	}
	if !slices.Contains(args, "cuda") {
		t.Fatalf("expected cuda device: %v", args)
	}
}

func TestVADArgsPassTokenOnlyWhenNeeded(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "default silero", cfg: Config{HFToken: "hf_x"}, want: []string{"--vad_method", "silero"}},
		{name: "pyannote needs token", cfg: Config{VADMethod: "Pyannote", HFToken: "hf_x"}, want: []string{"--vad_method", "pyannote", "--hf_token", "hf_x"}},
		{name: "diarize without token", cfg: Config{Diarize: true}, want: []string{"--vad_method", "silero"}},
		{name: "diarize with token", cfg: Config{Diarize: true, HFToken: " hf_x "}, want: []string{"--vad_method", "silero", "--hf_token", "hf_x", "--diarize"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.vadArgs(); !slices.Equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildArgsKeepsDecodingDeterministic(t *testing.T) {
	args := NewService(Config{Model: "small"}, "").buildArgs("/work/audio.wav", "/work", "")
	if args[0] != "--index-url" || args[2] != "whisperx" {
		t.Fatalf("unexpected uvx prefix: %v", args[:3])
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"--model small", "--temperature 0.0", "--beam_size 5", "--compute_type float32"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
}
