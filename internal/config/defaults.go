package config

const (
	defaultConfigPath       = "~/.config/proofbuild/config.toml"
	defaultDataDir          = "~/.local/share/proofbuild"
	defaultLogDir           = "~/.local/share/proofbuild/logs"
	defaultAPIBind          = "127.0.0.1:7490"
	defaultPollInterval     = 120
	defaultUploadsPrefix    = "uploads/"
	defaultClaimTTLSeconds  = 900
	defaultOpenAIBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenAIModel      = "openai/gpt-4o-mini"
	defaultWorkersAIBaseURL = "https://api.cloudflare.com/client/v4"
	defaultWorkersAIModel   = "@cf/meta/llama-3.1-8b-instruct"
	defaultVertexModel      = "gemini-2.5-flash"
	defaultVertexRegion     = "us-central1"
	defaultScriptTone       = "professional"
	defaultScriptLanguage   = "en"
	defaultScriptMaxTokens  = 2000
	defaultScriptTimeout    = 60
	defaultScriptReferer    = "https://github.com/proofbuild/proofbuild"
	defaultScriptTitle      = "proofbuild"
	defaultAudioBaseURL     = "https://api.elevenlabs.io/v1"
	defaultAudioVoiceID     = "JBFqnCBsd6RMkjVDRZzb"
	defaultAudioModelID     = "eleven_multilingual_v2"
	defaultAudioFormat      = "mp3_44100_128"
	defaultAudioStability   = 0.5
	defaultAudioSimilarity  = 0.75
	defaultAudioTimeout     = 60
	defaultMaxRetries       = 3
	defaultBaseDelayMS      = 1000
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Object store backends.
const (
	StoreFilesystem = "filesystem"
	StoreGCS        = "gcs"
	StoreMemory     = "memory"
)

// Script providers.
const (
	ProviderOpenAI    = "openai"
	ProviderWorkersAI = "workersai"
	ProviderVertex    = "vertex"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			Backend: StoreFilesystem,
		},
		Poller: Poller{
			IntervalSeconds: defaultPollInterval,
			UploadsPrefix:   defaultUploadsPrefix,
			ClaimTTLSeconds: defaultClaimTTLSeconds,
		},
		Script: Script{
			Provider:       ProviderOpenAI,
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			Tone:           defaultScriptTone,
			Language:       defaultScriptLanguage,
			MaxTokens:      defaultScriptMaxTokens,
			TimeoutSeconds: defaultScriptTimeout,
			Referer:        defaultScriptReferer,
			Title:          defaultScriptTitle,
			GCPRegion:      defaultVertexRegion,
		},
		Audio: Audio{
			BaseURL:         defaultAudioBaseURL,
			VoiceID:         defaultAudioVoiceID,
			ModelID:         defaultAudioModelID,
			OutputFormat:    defaultAudioFormat,
			Stability:       defaultAudioStability,
			SimilarityBoost: defaultAudioSimilarity,
			TimeoutSeconds:  defaultAudioTimeout,
		},
		Retry: Retry{
			MaxRetries:  defaultMaxRetries,
			BaseDelayMS: defaultBaseDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Ready:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
