package whisperx

import "strings"

// Config selects how WhisperX runs on this host.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote".
	VADMethod string
	// HFToken unlocks the pyannote models used for VAD and diarization.
	HFToken string
	// Diarize is ignored without HFToken.
	Diarize bool
	// WorkDir receives one scratch directory per Recognize call.
	WorkDir string
}

const DefaultModel = "large-v3"

const (
	uvxCommand    = "uvx"
	ffmpegCommand = "ffmpeg"

	vadSilero   = "silero"
	vadPyannote = "pyannote"

	pypiIndex = "https://pypi.org/simple"
	cudaIndex = "https://download.pytorch.org/whl/cu128"
)

// decodeFlags keeps decoding deterministic so a re-run over the same audio
// yields the same segments and the transcript checkpoint stays valid.
var decodeFlags = []string{
	"--batch_size", "4",
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "5",
	"--temperature", "0.0",
}

func (c Config) model() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultModel
}

func (c Config) token() string {
	return strings.TrimSpace(c.HFToken)
}

func (c Config) diarizes() bool {
	return c.Diarize && c.token() != ""
}

func (c Config) vadArgs() []string {
	method := strings.ToLower(strings.TrimSpace(c.VADMethod))
	if method == "" {
		method = vadSilero
	}
	args := []string{"--vad_method", method}
	if c.token() != "" && (method == vadPyannote || c.Diarize) {
		args = append(args, "--hf_token", c.token())
	}
	if c.diarizes() {
		args = append(args, "--diarize")
	}
	return args
}

// indexArgs points uvx at the CUDA wheel index before PyPI on GPU hosts.
func (c Config) indexArgs() []string {
	if c.CUDAEnabled {
		return []string{"--index-url", cudaIndex, "--extra-index-url", pypiIndex}
	}
	return []string{"--index-url", pypiIndex}
}

func (c Config) deviceArgs() []string {
	if c.CUDAEnabled {
		return []string{"--device", "cuda"}
	}
	return []string{"--device", "cpu", "--compute_type", "float32"}
}
