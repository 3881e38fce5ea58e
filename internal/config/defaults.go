package config

const (
	defaultConfigPath                  = "~/.config/echopress/config.toml"
	defaultStagingDir                  = "~/.local/share/echopress/staging"
	defaultLogDir                      = "~/.local/share/echopress/logs"
	defaultDraftDir                    = "~/.local/share/echopress/drafts"
	defaultProfilesDir                 = "~/.config/echopress/profiles"
	defaultAPIBind                     = "127.0.0.1:7491"
	defaultLLMBaseURL                  = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                    = "google/gemini-3-flash-preview"
	defaultLLMReferer                  = "https://github.com/echopress/echopress"
	defaultLLMTitle                    = "EchoPress"
	defaultLLMTimeoutSeconds           = 120
	defaultTranscriptionProvider       = "whisperx"
	defaultTranscriptionLanguage       = "en"
	defaultWhisperXModel               = "large-v3"
	defaultWhisperXVADMethod           = "silero"
	defaultTopK                        = 5
	defaultRelevanceThreshold          = 0.05
	defaultConfidenceFloor             = 0.0
	defaultBannedTermRetries           = 1
	defaultMaxSections                 = 5
	defaultMaxConcurrentTranscriptions = 10
	defaultTranscriptionTimeoutSeconds = 3600
	defaultGenerationTimeoutSeconds    = 1800
	defaultObserverBuffer              = 64
	defaultRunRetention                = 500
	defaultNotifyRequestTimeout        = 10
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
	defaultLogRetentionDays            = 30
)

var defaultAllowedFormats = []string{"mp3", "wav", "m4a", "ogg", "flac"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:  defaultStagingDir,
			LogDir:      defaultLogDir,
			DraftDir:    defaultDraftDir,
			ProfilesDir: defaultProfilesDir,
			APIBind:     defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcription: Transcription{
			Provider:          defaultTranscriptionProvider,
			Language:          defaultTranscriptionLanguage,
			WhisperXModel:     defaultWhisperXModel,
			WhisperXVADMethod: defaultWhisperXVADMethod,
			Diarize:           true,
			AllowedFormats:    append([]string(nil), defaultAllowedFormats...),
		},
		Generation: Generation{
			TopK:               defaultTopK,
			RelevanceThreshold: defaultRelevanceThreshold,
			ConfidenceFloor:    defaultConfidenceFloor,
			BannedTermRetries:  defaultBannedTermRetries,
			MaxSections:        defaultMaxSections,
		},
		Pipeline: Pipeline{
			MaxConcurrentTranscriptions: defaultMaxConcurrentTranscriptions,
			TranscriptionTimeoutSeconds: defaultTranscriptionTimeoutSeconds,
			GenerationTimeoutSeconds:    defaultGenerationTimeoutSeconds,
			ObserverBuffer:              defaultObserverBuffer,
			RunRetention:                defaultRunRetention,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunCompleted:   true,
			RunFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
