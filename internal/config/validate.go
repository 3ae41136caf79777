package config

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	if err := c.validateScript(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreFilesystem, StoreMemory:
	case StoreGCS:
		if c.Store.Bucket == "" {
			return errors.New("store.bucket must be set when store.backend is gcs (or set PROOFBUILD_BUCKET)")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported (use filesystem, gcs, or memory)", c.Store.Backend)
	}
	return nil
}

func (c *Config) validatePoller() error {
	if c.Poller.IntervalSeconds <= 0 {
		return errors.New("poller.interval_seconds must be positive")
	}
	if c.Poller.ClaimTTLSeconds <= 0 {
		return errors.New("poller.claim_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateScript() error {
	s := c.Script
	switch s.Provider {
	case ProviderOpenAI:
		if err := validateURL("script.base_url", s.BaseURL); err != nil {
			return err
		}
	case ProviderWorkersAI:
		if err := validateURL("script.base_url", s.BaseURL); err != nil {
			return err
		}
		if s.AccountID == "" {
			return errors.New("script.account_id must be set when script.provider is workersai (or set CLOUDFLARE_ACCOUNT_ID)")
		}
	case ProviderVertex:
		if s.GCPProject == "" {
			return errors.New("script.gcp_project must be set when script.provider is vertex (or set GOOGLE_CLOUD_PROJECT)")
		}
	default:
		return fmt.Errorf("script.provider %q is not supported (use openai, workersai, or vertex)", s.Provider)
	}
	if s.Model == "" {
		return errors.New("script.model must be set")
	}
	if _, err := language.Parse(s.Language); err != nil {
		return fmt.Errorf("script.language %q is not a valid language tag: %w", s.Language, err)
	}
	if s.MaxTokens <= 0 {
		return errors.New("script.max_tokens must be positive")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if err := validateURL("audio.base_url", c.Audio.BaseURL); err != nil {
		return err
	}
	if c.Audio.VoiceID == "" {
		return errors.New("audio.voice_id must be set")
	}
	if c.Audio.Stability < 0 || c.Audio.Stability > 1 {
		return errors.New("audio.stability must be between 0 and 1")
	}
	if c.Audio.SimilarityBoost < 0 || c.Audio.SimilarityBoost > 1 {
		return errors.New("audio.similarity_boost must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Retry.MaxDelayMS > 0 && c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be 0 or at least retry.base_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

// RequireGenerators reports missing credentials needed to run the pipeline.
// Read-only commands skip this check.
func (c *Config) RequireGenerators() error {
	if c.Audio.APIKey == "" {
		return errors.New("audio.api_key is required. Set ELEVENLABS_API_KEY env var or edit the config file (create with 'proofbuild config init')")
	}
	if c.Script.Provider != ProviderVertex && c.Script.APIKey == "" {
		return fmt.Errorf("script.api_key is required for provider %s (set SCRIPT_API_KEY)", c.Script.Provider)
	}
	return nil
}

func validateURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", field, value)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s %q must use http or https", field, value)
	}
	return nil
}
