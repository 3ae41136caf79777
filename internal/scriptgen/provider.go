package scriptgen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"proofbuild/internal/project"
	"proofbuild/internal/retry"
)

const defaultHTTPTimeout = 60 * time.Second

// Option customizes a provider.
type Option func(*base)

// WithHTTPClient overrides the default HTTP client of REST providers.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithRetrier wraps every remote call in r. Without it calls are attempted once.
func WithRetrier(r *retry.Retrier) Option {
	return func(b *base) {
		b.retrier = r
	}
}

// WithClock overrides the time stamped on generated scripts.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// base holds what every provider shares.
type base struct {
	httpClient *http.Client
	retrier    *retry.Retrier
	now        func() time.Time
}

func newBase(timeoutSeconds int, opts []Option) base {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	b := base{httpClient: &http.Client{Timeout: timeout}, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// completeFunc returns the raw model text for a prompt.
type completeFunc func(ctx context.Context, system, user string) (string, error)

func (b base) generate(ctx context.Context, provider string, complete completeFunc, projectID string, artifacts project.ArtifactCollection, opts Options) (project.Script, error) {
	opts = opts.withDefaults()
	prompt := BuildPrompt(projectID, artifacts, opts)
	content, err := retry.Do(ctx, b.retrier, func(ctx context.Context) (string, error) {
		return complete(ctx, SystemPrompt, prompt)
	})
	if err != nil {
		return project.Script{}, fmt.Errorf("%s generate: %w", provider, err)
	}
	return BuildScript(projectID, content, opts, b.now())
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
