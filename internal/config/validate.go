package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"echopress/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
		return fmt.Errorf("llm.base_url must be a valid URL: %w", err)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case "whisperx":
	case "http":
		if c.Transcription.ASRURL == "" {
			return errors.New("transcription.asr_url is required when transcription.provider is \"http\"")
		}
	default:
		return fmt.Errorf("transcription.provider must be \"whisperx\" or \"http\", got %q", c.Transcription.Provider)
	}
	switch c.Transcription.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.whisperx_vad_method must be \"silero\" or \"pyannote\", got %q", c.Transcription.WhisperXVADMethod)
	}
	if _, err := language.Normalize(c.Transcription.Language); err != nil {
		return fmt.Errorf("transcription.language: %w", err)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if g.RelevanceThreshold < 0 || g.RelevanceThreshold > 1 {
		return errors.New("generation.relevance_threshold must be between 0 and 1")
	}
	if g.ConfidenceFloor < 0 || g.ConfidenceFloor > 1 {
		return errors.New("generation.confidence_floor must be between 0 and 1")
	}
	if g.BannedTermRetries < 0 {
		return errors.New("generation.banned_term_retries must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxConcurrentTranscriptions > 256 {
		return errors.New("pipeline.max_concurrent_transcriptions must be <= 256")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
