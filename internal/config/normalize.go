package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTranscription()
	c.normalizeGeneration()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DraftDir) == "" {
		c.Paths.DraftDir = defaultDraftDir
	}
	if c.Paths.DraftDir, err = expandPath(strings.TrimSpace(c.Paths.DraftDir)); err != nil {
		return fmt.Errorf("paths.draft_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProfilesDir) == "" {
		c.Paths.ProfilesDir = defaultProfilesDir
	}
	if c.Paths.ProfilesDir, err = expandPath(strings.TrimSpace(c.Paths.ProfilesDir)); err != nil {
		return fmt.Errorf("paths.profiles_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if value, ok := lookupEnv("ECHOPRESS_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeLLM() {
	if value, ok := lookupEnv("ECHOPRESS_LLM_API_KEY", "OPENROUTER_API_KEY"); ok {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = defaultTranscriptionProvider
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Language == "" {
		t.Language = defaultTranscriptionLanguage
	}
	t.WhisperXModel = strings.TrimSpace(t.WhisperXModel)
	if t.WhisperXModel == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
	t.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(t.WhisperXVADMethod))
	if t.WhisperXVADMethod == "" {
		t.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	if value, ok := lookupEnv("HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"); ok {
		t.HuggingFaceToken = value
	}
	t.HuggingFaceToken = strings.TrimSpace(t.HuggingFaceToken)
	t.ASRURL = strings.TrimRight(strings.TrimSpace(t.ASRURL), "/")
	t.DiarizationURL = strings.TrimRight(strings.TrimSpace(t.DiarizationURL), "/")

	formats := make([]string, 0, len(t.AllowedFormats))
	seen := make(map[string]struct{}, len(t.AllowedFormats))
	for _, f := range t.AllowedFormats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = append(formats, defaultAllowedFormats...)
	}
	t.AllowedFormats = formats
}

func (c *Config) normalizeGeneration() {
	g := &c.Generation
	if g.TopK <= 0 {
		g.TopK = defaultTopK
	}
	if g.MaxSections <= 0 {
		g.MaxSections = defaultMaxSections
	}
	terms := make([]string, 0, len(g.BannedTerms))
	for _, term := range g.BannedTerms {
		if term = strings.TrimSpace(term); term != "" {
			terms = append(terms, term)
		}
	}
	g.BannedTerms = terms
}

func (c *Config) normalizePipeline() {
	p := &c.Pipeline
	if p.MaxConcurrentTranscriptions <= 0 {
		p.MaxConcurrentTranscriptions = defaultMaxConcurrentTranscriptions
	}
	if p.TranscriptionTimeoutSeconds <= 0 {
		p.TranscriptionTimeoutSeconds = defaultTranscriptionTimeoutSeconds
	}
	if p.GenerationTimeoutSeconds <= 0 {
		p.GenerationTimeoutSeconds = defaultGenerationTimeoutSeconds
	}
	if p.ObserverBuffer <= 0 {
		p.ObserverBuffer = defaultObserverBuffer
	}
	if p.RunRetention <= 0 {
		p.RunRetention = defaultRunRetention
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}
