package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"proofbuild/internal/project"
)

const (
	DefaultTone     = "professional"
	DefaultLanguage = project.DefaultLanguage
	defaultMaxTok   = 2000
)

// Options tune the narration style.
type Options struct {
	Tone     string
	Language string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Tone) == "" {
		o.Tone = DefaultTone
	}
	if strings.TrimSpace(o.Language) == "" {
		o.Language = DefaultLanguage
	}
	return o
}

// Generator produces a validated Script for a project.
type Generator interface {
	Generate(ctx context.Context, projectID string, artifacts project.ArtifactCollection, opts Options) (project.Script, error)
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }
