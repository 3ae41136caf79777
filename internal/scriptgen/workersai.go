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
	defaultWorkersAIURL   = "https://api.cloudflare.com/client/v4"
	defaultWorkersAIModel = "@cf/meta/llama-3.1-8b-instruct"
)

// WorkersAIConfig captures the Cloudflare Workers AI settings.
type WorkersAIConfig struct {
	APIToken       string
	AccountID      string
	BaseURL        string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// WorkersAIClient generates scripts through the Workers AI REST API.
type WorkersAIClient struct {
	base
	cfg WorkersAIConfig
}

// NewWorkersAIClient constructs the Workers AI provider.
func NewWorkersAIClient(cfg WorkersAIConfig, opts ...Option) *WorkersAIClient {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.AccountID = strings.TrimSpace(cfg.AccountID)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWorkersAIURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultWorkersAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTok
	}
	return &WorkersAIClient{base: newBase(cfg.TimeoutSeconds, opts), cfg: cfg}
}

// Generate implements Generator.
func (c *WorkersAIClient) Generate(ctx context.Context, projectID string, artifacts project.ArtifactCollection, opts Options) (project.Script, error) {
	if c.cfg.APIToken == "" || c.cfg.AccountID == "" {
		return project.Script{}, services.Wrap(services.ErrConfiguration, "", "workersai generate", "api token and account id required", nil)
	}
	return c.generate(ctx, "workersai", c.complete, projectID, artifacts, opts)
}

type workersAIRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type workersAIEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Success *bool           `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *WorkersAIClient) endpoint() string {
	return c.cfg.BaseURL + "/accounts/" + c.cfg.AccountID + "/ai/run/" + strings.TrimPrefix(c.cfg.Model, "/")
}

func (c *WorkersAIClient) complete(ctx context.Context, system, user string) (string, error) {
	encoded, err := json.Marshal(workersAIRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("workersai request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("workersai request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("workersai request: network error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("workersai request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{Provider: "workersai", StatusCode: resp.StatusCode, Body: string(body)}
	}

	payload := body
	var envelope workersAIEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Success != nil || len(envelope.Result) > 0) {
		if envelope.Success != nil && !*envelope.Success {
			msg := "request failed"
			if len(envelope.Errors) > 0 {
				msg = envelope.Errors[0].Message
			}
			return "", services.Wrap(services.ErrExternalService, "", "workersai request", msg, nil)
		}
		payload = envelope.Result
	}
	return NormalizeResponse(payload)
}
