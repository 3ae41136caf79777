package audiogen

import (
	"context"
	"fmt"
	"strings"
)

// DefaultContentType is assumed when the provider omits one.
const DefaultContentType = "audio/mpeg"

// Options override the configured voice for one synthesis.
type Options struct {
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// Result is synthesized audio.
type Result struct {
	Data        []byte
	ContentType string
}

// Generator turns narration text into audio.
type Generator interface {
	Synthesize(ctx context.Context, text string, opts Options) (Result, error)
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("elevenlabs: http %d", e.StatusCode)
	}
	return fmt.Sprintf("elevenlabs: http %d: %s", e.StatusCode, msg)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }
