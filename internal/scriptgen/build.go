package scriptgen

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"

	"proofbuild/internal/project"
	"proofbuild/internal/services"
)

type scriptPayload struct {
	Segments      []payloadSegment `json:"segments"`
	TotalDuration *float64         `json:"totalDuration"`
	Metadata      *struct {
		Tone     string `json:"tone"`
		Language string `json:"language"`
	} `json:"metadata"`
}

type payloadSegment struct {
	Text       string   `json:"text"`
	StartTime  float64  `json:"startTime"`
	Duration   float64  `json:"duration"`
	FrameIndex *float64 `json:"frameIndex"`
}

// BuildScript decodes model output into a validated Script. The project id,
// schema version and creation time are stamped here; the model cannot
// override them.
func BuildScript(projectID, content string, opts Options, now time.Time) (project.Script, error) {
	opts = opts.withDefaults()
	var payload scriptPayload
	if err := DecodeLLMJSON(content, &payload); err != nil {
		return project.Script{}, services.Wrap(services.ErrValidation, "", "parse script", "model output is not a JSON script", err)
	}
	if payload.TotalDuration == nil {
		return project.Script{}, services.Wrap(services.ErrValidation, "", "parse script", "totalDuration is required", nil)
	}

	segments := make([]project.Segment, 0, len(payload.Segments))
	for i, seg := range payload.Segments {
		out := project.Segment{Text: seg.Text, StartTime: seg.StartTime, Duration: seg.Duration}
		if seg.FrameIndex != nil {
			idx := *seg.FrameIndex
			if idx != math.Trunc(idx) {
				return project.Script{}, services.Wrap(services.ErrValidation, "", "parse script",
					fmt.Sprintf("segments[%d].frameIndex must be an integer", i), nil)
			}
			frame := int(idx)
			out.FrameIndex = &frame
		}
		segments = append(segments, out)
	}

	meta := &project.ScriptMetadata{Tone: opts.Tone, Language: opts.Language}
	if payload.Metadata != nil {
		if tone := strings.TrimSpace(payload.Metadata.Tone); tone != "" {
			meta.Tone = tone
		}
		if lang := strings.TrimSpace(payload.Metadata.Language); lang != "" {
			meta.Language = canonicalLanguage(lang)
		}
	}

	script := project.Script{
		ProjectID:     projectID,
		Version:       project.SchemaVersion,
		CreatedAt:     now.UTC(),
		Segments:      segments,
		TotalDuration: *payload.TotalDuration,
		Metadata:      meta,
	}
	if err := script.Validate(); err != nil {
		return project.Script{}, err
	}
	return script, nil
}

// canonicalLanguage normalizes a BCP 47 tag, keeping unparseable values
// verbatim.
func canonicalLanguage(value string) string {
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	return tag.String()
}
