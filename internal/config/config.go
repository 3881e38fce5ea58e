package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir  string `toml:"staging_dir"`
	LogDir      string `toml:"log_dir"`
	DraftDir    string `toml:"draft_dir"`
	ProfilesDir string `toml:"profiles_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// LLM contains the text-generation provider connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription selects and configures the speech-to-text and diarization providers.
type Transcription struct {
	// Provider is "whisperx" (local uvx invocation) or "http" (remote ASR service).
	Provider            string   `toml:"provider"`
	Language            string   `toml:"language"`
	WhisperXModel       string   `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool     `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod   string   `toml:"whisperx_vad_method"`
	HuggingFaceToken    string   `toml:"hf_token"`
	Diarize             bool     `toml:"diarize"`
	ASRURL              string   `toml:"asr_url"`
	DiarizationURL      string   `toml:"diarization_url"`
	AllowedFormats      []string `toml:"allowed_formats"`
}

// Generation tunes retrieval and section drafting.
type Generation struct {
	TopK               int      `toml:"top_k"`
	RelevanceThreshold float64  `toml:"relevance_threshold"`
	ConfidenceFloor    float64  `toml:"confidence_floor"`
	BannedTermRetries  int      `toml:"banned_term_retries"`
	MaxSections        int      `toml:"max_sections"`
	BannedTerms        []string `toml:"banned_terms"`
}

// Pipeline bounds concurrency and per-stage time budgets.
type Pipeline struct {
	MaxConcurrentTranscriptions int `toml:"max_concurrent_transcriptions"`
	TranscriptionTimeoutSeconds int `toml:"transcription_timeout_seconds"`
	GenerationTimeoutSeconds    int `toml:"generation_timeout_seconds"`
	ObserverBuffer              int `toml:"observer_buffer"`
	RunRetention                int `toml:"run_retention"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for EchoPress.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - LLM: text-generation provider connection
//   - Transcription: speech-to-text and diarization providers
//   - Generation: retrieval and drafting knobs
//   - Pipeline: admission cap and per-stage timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Transcription Transcription `toml:"transcription"`
	Generation    Generation    `toml:"generation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("echopress.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.DraftDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ProfilesDir) != "" {
		// Profiles are optional; a missing directory just means no named profiles.
		_ = os.MkdirAll(c.Paths.ProfilesDir, 0o755)
	}
	return nil
}

// QueueDBPath is the SQLite database holding run snapshots and checkpoints.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "echopress.db")
}

// SocketPath is the unix socket the daemon's IPC server listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "echopress.sock")
}

// LockPath is the flock file guarding single daemon instances.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "echopressd.lock")
}

// TranscriptionTimeout is the time budget for the transcription stage.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Pipeline.TranscriptionTimeoutSeconds) * time.Second
}

// GenerationTimeout is the time budget for the generation stage.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Pipeline.GenerationTimeoutSeconds) * time.Second
}

// FormatAllowed reports whether ext (with or without the dot) is an accepted audio format.
func (c *Config) FormatAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Transcription.AllowedFormats {
		if ext == allowed {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved text-generation connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
