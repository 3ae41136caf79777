package audiogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proofbuild/internal/config"
	"proofbuild/internal/services"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "JBFqnCBsd6RMkjVDRZzb"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
	defaultHTTPTimeout  = 60 * time.Second
	maxErrorBody        = 64 << 10
)

// Config captures the ElevenLabs settings.
type Config struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	OutputFormat    string
	Stability       float64
	SimilarityBoost float64
	TimeoutSeconds  int
}

// ConfigFromAudio converts the [audio] config section.
func ConfigFromAudio(cfg config.Audio) Config {
	return Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		VoiceID:         cfg.VoiceID,
		ModelID:         cfg.ModelID,
		OutputFormat:    cfg.OutputFormat,
		Stability:       cfg.Stability,
		SimilarityBoost: cfg.SimilarityBoost,
		TimeoutSeconds:  cfg.TimeoutSeconds,
	}
}

// Client calls the ElevenLabs text-to-speech API. Each call is a single
// attempt; callers wrap it with retry.Do.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an ElevenLabs client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = defaultOutputFormat
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech.
func (c *Client) Synthesize(ctx context.Context, text string, opts Options) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "", "synthesize", "text cannot be empty", nil)
	}
	if c.cfg.APIKey == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "", "synthesize", "elevenlabs api key required", nil)
	}
	voice := firstNonEmpty(opts.VoiceID, c.cfg.VoiceID)
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "text-to-speech", voice)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "", "synthesize", "build url", err)
	}
	query := url.Values{"output_format": {firstNonEmpty(opts.OutputFormat, c.cfg.OutputFormat)}}
	endpoint += "?" + query.Encode()

	encoded, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: firstNonEmpty(opts.ModelID, c.cfg.ModelID),
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", DefaultContentType)
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: network error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp, body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: read body: %w", err)
	}
	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Result{Data: data, ContentType: contentType}, nil
}

// errorMessage extracts detail.message or a string detail from the error
// body, falling back to the status line.
func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && strings.TrimSpace(detail.Message) != "" {
			return strings.TrimSpace(detail.Message)
		}
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return "ElevenLabs API error: " + resp.Status
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
