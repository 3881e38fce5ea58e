package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"echopress/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "echopress", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Pipeline.MaxConcurrentTranscriptions != 10 {
		t.Fatalf("unexpected admission cap: %d", cfg.Pipeline.MaxConcurrentTranscriptions)
	}
	if cfg.TranscriptionTimeout().Seconds() != 3600 {
		t.Fatalf("unexpected transcription timeout: %s", cfg.TranscriptionTimeout())
	}
	if cfg.GenerationTimeout().Seconds() != 1800 {
		t.Fatalf("unexpected generation timeout: %s", cfg.GenerationTimeout())
	}
	if cfg.Generation.BannedTermRetries != 1 {
		t.Fatalf("expected one banned-term retry by default, got %d", cfg.Generation.BannedTermRetries)
	}
	for _, ext := range []string{"mp3", ".WAV", "m4a", "ogg", "flac"} {
		if !cfg.FormatAllowed(ext) {
			t.Fatalf("expected %q to be allowed", ext)
		}
	}
	if cfg.FormatAllowed("mkv") {
		t.Fatal("expected mkv to be rejected")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Paths.DraftDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "echopress.toml")

	type payload struct {
		Transcription struct {
			Provider string `toml:"provider"`
			ASRURL   string `toml:"asr_url"`
		} `toml:"transcription"`
		Generation struct {
			TopK        int      `toml:"top_k"`
			BannedTerms []string `toml:"banned_terms"`
		} `toml:"generation"`
		Pipeline struct {
			MaxConcurrentTranscriptions int `toml:"max_concurrent_transcriptions"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Transcription.Provider = "HTTP"
	custom.Transcription.ASRURL = "http://asr.local:8001/"
	custom.Generation.TopK = 3
	custom.Generation.BannedTerms = []string{" synergy ", ""}
	custom.Pipeline.MaxConcurrentTranscriptions = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Transcription.Provider != "http" {
		t.Fatalf("expected provider normalized to http, got %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.ASRURL != "http://asr.local:8001" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Transcription.ASRURL)
	}
	if cfg.Generation.TopK != 3 {
		t.Fatalf("expected top_k 3, got %d", cfg.Generation.TopK)
	}
	if len(cfg.Generation.BannedTerms) != 1 || cfg.Generation.BannedTerms[0] != "synergy" {
		t.Fatalf("unexpected banned terms: %v", cfg.Generation.BannedTerms)
	}
	if cfg.Pipeline.MaxConcurrentTranscriptions != 2 {
		t.Fatalf("expected cap 2, got %d", cfg.Pipeline.MaxConcurrentTranscriptions)
	}
}

func TestEnvVarOverridesConfigFileForSecrets(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "echopress.toml")
	content := "[llm]\napi_key = \"file-llm\"\n\n[transcription]\nhf_token = \"file-hf\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "env-llm")
	t.Setenv("HF_TOKEN", "env-hf")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-llm" {
		t.Fatalf("expected env LLM key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Transcription.HuggingFaceToken != "env-hf" {
		t.Fatalf("expected env HF token, got %q", cfg.Transcription.HuggingFaceToken)
	}
}

func TestValidateRejectsHTTPProviderWithoutURL(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "echopress.toml")
	if err := os.WriteFile(configPath, []byte("[transcription]\nprovider = \"http\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "transcription.asr_url") {
		t.Fatalf("expected asr_url validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "echopress.toml")
	if err := os.WriteFile(configPath, []byte("[pipeline]\nmax_parallel = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsOutOfRangeFloor(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Generation.ConfidenceFloor = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected confidence floor validation error")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Generation.TopK != 5 {
		t.Fatalf("unexpected top_k from sample: %d", cfg.Generation.TopK)
	}
}
