package scriptgen

import (
	"context"
	"fmt"
	"io"

	"proofbuild/internal/config"
	"proofbuild/internal/services"
)

// New builds the provider selected by cfg.Provider. The closer releases
// provider connections and is never nil on success.
func New(ctx context.Context, cfg config.Script, opts ...Option) (Generator, io.Closer, error) {
	switch cfg.Provider {
	case "", config.ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			MaxTokens:      cfg.MaxTokens,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...), nopCloser{}, nil
	case config.ProviderWorkersAI:
		return NewWorkersAIClient(WorkersAIConfig{
			APIToken:       cfg.APIKey,
			AccountID:      cfg.AccountID,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...), nopCloser{}, nil
	case config.ProviderVertex:
		client, err := NewVertexClient(ctx, VertexConfig{
			ProjectID: cfg.GCPProject,
			Region:    cfg.GCPRegion,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, services.Wrap(services.ErrConfiguration, "", "script generator",
			fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}
