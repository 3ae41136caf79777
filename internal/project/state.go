package project

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"proofbuild/internal/pipeline"
	"proofbuild/internal/services"
)

// PipelineErrorCode is the machine code recorded for executor failures.
const PipelineErrorCode = "PIPELINE_ERROR"

// ErrorState describes the latest failure of a project.
type ErrorState struct {
	Stage     pipeline.Stage `json:"stage"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Progress tracks sub-step completion inside the pipeline.
type Progress struct {
	ScriptGenerated    bool `json:"scriptGenerated"`
	AudioGenerated     bool `json:"audioGenerated"`
	ArtifactsProcessed int  `json:"artifactsProcessed"`
}

// State is the authoritative orchestration record of a project. Values are
// never mutated in place; every transition returns a new State.
type State struct {
	ProjectID string         `json:"projectId"`
	Stage     pipeline.Stage `json:"stage"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Error     *ErrorState    `json:"error,omitempty"`
	Metadata  Progress       `json:"metadata"`
}

// NewState returns the initial record for a project first seen at now.
func NewState(id string, initial pipeline.Stage, now time.Time) State {
	now = now.UTC()
	return State{
		ProjectID: id,
		Stage:     initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance returns a copy moved to stage.
func (s State) Advance(stage pipeline.Stage, now time.Time) State {
	next := s.clone()
	next.Stage = stage
	next.UpdatedAt = now.UTC()
	return next
}

// WithProgress returns a copy with the progress metadata replaced by update(current).
func (s State) WithProgress(update func(Progress) Progress, now time.Time) State {
	next := s.clone()
	next.Metadata = update(s.Metadata)
	next.UpdatedAt = now.UTC()
	return next
}

// Failed returns a copy in the error stage carrying failure.
func (s State) Failed(failure ErrorState, now time.Time) State {
	next := s.clone()
	failure.Timestamp = failure.Timestamp.UTC()
	failure.Details = maps.Clone(failure.Details)
	next.Error = &failure
	next.Stage = pipeline.StageError
	next.UpdatedAt = now.UTC()
	return next
}

func (s State) clone() State {
	out := s
	if s.Error != nil {
		errCopy := *s.Error
		errCopy.Details = maps.Clone(s.Error.Details)
		out.Error = &errCopy
	}
	return out
}

// IsReady reports whether the project is playback-ready.
func (s State) IsReady() bool { return s.Stage == pipeline.StageReady }

// HasError reports whether the project failed.
func (s State) HasError() bool { return s.Stage == pipeline.StageError }

// IsProcessing reports whether the project is neither ready nor failed.
func (s State) IsProcessing() bool { return !s.IsReady() && !s.HasError() }

// IsTerminal reports whether the polling loop must leave the project alone.
func (s State) IsTerminal() bool { return s.Stage.IsTerminal() }

// Validate checks the record against the stage table.
func (s State) Validate(table *pipeline.Table) error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "", "validate state", msg, nil)
	}
	if err := ValidateID(s.ProjectID); err != nil {
		return services.Wrap(services.ErrValidation, "", "validate state", "projectId", err)
	}
	if !table.IsValid(s.Stage) {
		return fail(fmt.Sprintf("unknown stage %q", s.Stage))
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		return fail("createdAt and updatedAt are required")
	}
	if s.Metadata.ArtifactsProcessed < 0 {
		return fail("metadata.artifactsProcessed must not be negative")
	}
	if s.Error != nil {
		if !table.IsValid(s.Error.Stage) {
			return fail(fmt.Sprintf("error.stage %q is unknown", s.Error.Stage))
		}
		if s.Error.Timestamp.IsZero() {
			return fail("error.timestamp is required")
		}
	}
	return nil
}

// DecodeState parses and validates a persisted state record.
func DecodeState(data []byte, table *pipeline.Table) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, services.Wrap(services.ErrValidation, "", "decode state", "invalid JSON", err)
	}
	if err := s.Validate(table); err != nil {
		return State{}, err
	}
	return s, nil
}
