package project

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"proofbuild/internal/services"
)

// DefaultLanguage is assumed when a script omits its language.
const DefaultLanguage = "en"

// Segment is one narrated span of the video.
type Segment struct {
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	Duration   float64 `json:"duration"`
	FrameIndex *int    `json:"frameIndex,omitempty"`
}

// ScriptMetadata records the narration style requested.
type ScriptMetadata struct {
	Tone     string `json:"tone,omitempty"`
	Language string `json:"language"`
}

// Script is the generated narration. It is written once per project.
type Script struct {
	ProjectID     string          `json:"projectId"`
	Version       string          `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	Segments      []Segment       `json:"segments"`
	TotalDuration float64         `json:"totalDuration"`
	Metadata      *ScriptMetadata `json:"metadata,omitempty"`
}

// DecodeScript parses and validates a persisted script.
func DecodeScript(data []byte) (Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return Script{}, services.Wrap(services.ErrValidation, "", "decode script", "invalid JSON", err)
	}
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func (s Script) withDefaults() Script {
	if s.Version == "" {
		s.Version = SchemaVersion
	}
	if s.Metadata != nil && strings.TrimSpace(s.Metadata.Language) == "" {
		meta := *s.Metadata
		meta.Language = DefaultLanguage
		s.Metadata = &meta
	}
	return s
}

// Validate checks the script schema. Segment text must be non-empty but may
// be blank; blank narration is rejected later, before synthesis.
func (s Script) Validate() error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "", "validate script", msg, nil)
	}
	if strings.TrimSpace(s.ProjectID) == "" {
		return fail("projectId is required")
	}
	if s.Version != SchemaVersion {
		return fail(fmt.Sprintf("unsupported version %q", s.Version))
	}
	if s.CreatedAt.IsZero() {
		return fail("createdAt is required")
	}
	if len(s.Segments) == 0 {
		return fail("at least one segment is required")
	}
	for i, seg := range s.Segments {
		if seg.Text == "" {
			return fail(fmt.Sprintf("segments[%d].text must not be empty", i))
		}
		if !nonNegative(seg.StartTime) {
			return fail(fmt.Sprintf("segments[%d].startTime must be a non-negative number", i))
		}
		if !nonNegative(seg.Duration) {
			return fail(fmt.Sprintf("segments[%d].duration must be a non-negative number", i))
		}
		if seg.FrameIndex != nil && *seg.FrameIndex < 0 {
			return fail(fmt.Sprintf("segments[%d].frameIndex must not be negative", i))
		}
	}
	if !nonNegative(s.TotalDuration) {
		return fail("totalDuration must be a non-negative number")
	}
	return nil
}

// NarrationText joins the segment texts with single spaces.
func (s Script) NarrationText() string {
	parts := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		parts[i] = seg.Text
	}
	return strings.Join(parts, " ")
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
