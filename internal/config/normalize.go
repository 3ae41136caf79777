package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizePoller()
	c.normalizeScript()
	c.normalizeAudio()
	c.normalizeRetry()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("PROOFBUILD_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFilesystem
	}
	c.Store.Bucket = strings.TrimSpace(c.Store.Bucket)
	if c.Store.Bucket == "" {
		c.Store.Bucket = lookupEnv("PROOFBUILD_BUCKET")
	}
	if strings.TrimSpace(c.Store.Root) == "" {
		c.Store.Root = filepath.Join(c.Paths.DataDir, "objects")
	}
	var err error
	if c.Store.Root, err = expandPath(strings.TrimSpace(c.Store.Root)); err != nil {
		return fmt.Errorf("store.root: %w", err)
	}
	return nil
}

func (c *Config) normalizePoller() {
	c.Poller.UploadsPrefix = strings.TrimSpace(c.Poller.UploadsPrefix)
	if c.Poller.UploadsPrefix == "" {
		c.Poller.UploadsPrefix = defaultUploadsPrefix
	}
	if !strings.HasSuffix(c.Poller.UploadsPrefix, "/") {
		c.Poller.UploadsPrefix += "/"
	}
	if c.Poller.ClaimTTLSeconds == 0 {
		c.Poller.ClaimTTLSeconds = defaultClaimTTLSeconds
	}
}

func (c *Config) normalizeScript() {
	s := &c.Script
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = ProviderOpenAI
	}
	s.APIKey = strings.TrimSpace(s.APIKey)
	if s.APIKey == "" {
		switch s.Provider {
		case ProviderWorkersAI:
			s.APIKey = lookupEnv("SCRIPT_API_KEY", "CLOUDFLARE_API_TOKEN")
		default:
			s.APIKey = lookupEnv("SCRIPT_API_KEY", "OPENROUTER_API_KEY")
		}
	}
	s.AccountID = strings.TrimSpace(s.AccountID)
	if s.AccountID == "" {
		s.AccountID = lookupEnv("CLOUDFLARE_ACCOUNT_ID")
	}
	s.GCPProject = strings.TrimSpace(s.GCPProject)
	if s.GCPProject == "" {
		s.GCPProject = lookupEnv("GOOGLE_CLOUD_PROJECT")
	}
	s.GCPRegion = strings.TrimSpace(s.GCPRegion)
	if s.GCPRegion == "" {
		s.GCPRegion = defaultVertexRegion
	}
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.Model = strings.TrimSpace(s.Model)
	if s.Provider != ProviderOpenAI {
		// Defaults target the OpenAI-compatible endpoint.
		if s.BaseURL == defaultOpenAIBaseURL {
			s.BaseURL = ""
		}
		if s.Model == defaultOpenAIModel {
			s.Model = ""
		}
	}
	switch s.Provider {
	case ProviderOpenAI:
		if s.BaseURL == "" {
			s.BaseURL = defaultOpenAIBaseURL
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
	case ProviderWorkersAI:
		if s.BaseURL == "" {
			s.BaseURL = defaultWorkersAIBaseURL
		}
		if s.Model == "" {
			s.Model = defaultWorkersAIModel
		}
	case ProviderVertex:
		if s.Model == "" {
			s.Model = defaultVertexModel
		}
	}
	s.Tone = strings.TrimSpace(s.Tone)
	if s.Tone == "" {
		s.Tone = defaultScriptTone
	}
	s.Language = strings.TrimSpace(s.Language)
	if s.Language == "" {
		s.Language = defaultScriptLanguage
	}
	if tag, err := language.Parse(s.Language); err == nil {
		s.Language = tag.String()
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultScriptMaxTokens
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultScriptTimeout
	}
	s.Referer = strings.TrimSpace(s.Referer)
	s.Title = strings.TrimSpace(s.Title)
}

func (c *Config) normalizeAudio() {
	a := &c.Audio
	a.APIKey = strings.TrimSpace(a.APIKey)
	if a.APIKey == "" {
		a.APIKey = lookupEnv("ELEVENLABS_API_KEY")
	}
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.BaseURL == "" {
		a.BaseURL = defaultAudioBaseURL
	}
	a.VoiceID = strings.TrimSpace(a.VoiceID)
	if a.VoiceID == "" {
		a.VoiceID = defaultAudioVoiceID
	}
	a.ModelID = strings.TrimSpace(a.ModelID)
	if a.ModelID == "" {
		a.ModelID = defaultAudioModelID
	}
	a.OutputFormat = strings.TrimSpace(a.OutputFormat)
	if a.OutputFormat == "" {
		a.OutputFormat = defaultAudioFormat
	}
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = defaultAudioTimeout
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = defaultBaseDelayMS
	}
	if c.Retry.MaxDelayMS < 0 {
		c.Retry.MaxDelayMS = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
