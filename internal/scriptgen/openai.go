package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"proofbuild/internal/project"
	"proofbuild/internal/services"
)

const (
	defaultOpenAIURL   = "https://openrouter.ai/api/v1/chat/completions"
	jsonResponseFormat = "json_object"
)

// OpenAIConfig captures the settings of an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	MaxTokens      int
	TimeoutSeconds int
}

// OpenAIClient generates scripts through a chat completions endpoint.
type OpenAIClient struct {
	base
	cfg OpenAIConfig
}

// NewOpenAIClient constructs the OpenAI-compatible provider.
func NewOpenAIClient(cfg OpenAIConfig, opts ...Option) *OpenAIClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTok
	}
	return &OpenAIClient{base: newBase(cfg.TimeoutSeconds, opts), cfg: cfg}
}

// Generate implements Generator.
func (c *OpenAIClient) Generate(ctx context.Context, projectID string, artifacts project.ArtifactCollection, opts Options) (project.Script, error) {
	if c.cfg.APIKey == "" {
		return project.Script{}, services.Wrap(services.ErrConfiguration, "", "openai generate", "api key required", nil)
	}
	return c.generate(ctx, "openai", c.complete, projectID, artifacts, opts)
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("openai request: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.FinishReason, e.Refusal, e.Snippet)
}

// Unwrap marks empty completions as transient so they are retried.
func (e *emptyContentError) Unwrap() error { return services.ErrTransient }

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": jsonResponseFormat},
	})
	if err != nil {
		return "", fmt.Errorf("openai request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("openai request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: network error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("openai request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("openai request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrExternalService, "", "openai request", strings.TrimSpace(completion.Error.Message), nil)
	}
	content, finishReason := extractCompletionPayload(completion)
	if content == "" {
		return "", &emptyContentError{
			FinishReason: finishReason,
			Refusal:      extractCompletionRefusal(completion),
			Snippet:      summarizePayloadSnippet(string(body)),
		}
	}
	return content, nil
}
