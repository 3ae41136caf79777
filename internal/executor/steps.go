package executor

import (
	"context"
	"errors"
	"strings"

	"proofbuild/internal/audiogen"
	"proofbuild/internal/logging"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/retry"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
)

// generateScript produces the narration script, reusing a persisted one when
// the scriptGenerated marker is set.
func (e *Executor) generateScript(ctx context.Context, r *run) error {
	if r.state.Metadata.ScriptGenerated {
		script, ok, err := e.states.LoadScript(ctx, r.state.ProjectID)
		switch {
		case err != nil && !services.IsPermanent(err):
			return err
		case err == nil && ok:
			r.logger.Info("reusing persisted script", logging.Int("segments", len(script.Segments)))
			r.script = &script
			return nil
		default:
			logging.WarnWithContext(r.logger, "script marker set but script unusable; regenerating", "script_marker_stale",
				logging.String(logging.FieldImpact, "script generation runs again"),
				logging.String(logging.FieldErrorHint, "inspect scripts/<id>.json"),
				logging.Error(err),
			)
		}
	}

	script, err := e.scripts.Generate(ctx, r.state.ProjectID, r.manifest.Artifacts, e.scriptOpts)
	if err != nil {
		return err
	}
	if err := e.states.SaveScript(ctx, script); err != nil {
		return err
	}
	r.script = &script
	r.logger.Info("script generated",
		logging.Int("segments", len(script.Segments)),
		logging.Any("total_duration", script.TotalDuration),
	)
	return e.saveProgress(ctx, r, func(p project.Progress) project.Progress {
		p.ScriptGenerated = true
		p.ArtifactsProcessed = r.manifest.Artifacts.Count()
		return p
	})
}

// generateAudio synthesizes the narration through the retry wrapper, skipping
// synthesis when audio was already persisted.
func (e *Executor) generateAudio(ctx context.Context, r *run) error {
	if r.state.Metadata.AudioGenerated {
		_, ok, err := e.states.LoadAudio(ctx, r.state.ProjectID)
		if err != nil {
			return err
		}
		if ok {
			r.logger.Info("reusing persisted audio")
			return nil
		}
	}

	script, err := e.scriptFor(ctx, r)
	if err != nil {
		return err
	}
	narration := script.NarrationText()
	if strings.TrimSpace(narration) == "" {
		return services.Wrap(services.ErrPrecondition, string(pipeline.StageGenerateAudio), "synthesize", "narration text is empty", nil)
	}

	result, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (audiogen.Result, error) {
		return e.audio.Synthesize(ctx, narration, e.audioOpts)
	})
	if err != nil {
		return err
	}
	if err := e.states.SaveAudio(ctx, r.state.ProjectID, statestore.Audio{Data: result.Data, ContentType: result.ContentType}); err != nil {
		return err
	}
	r.logger.Info("audio generated",
		logging.Int("bytes", len(result.Data)),
		logging.String("content_type", result.ContentType),
	)
	return e.saveProgress(ctx, r, func(p project.Progress) project.Progress {
		p.AudioGenerated = true
		return p
	})
}

func (e *Executor) scriptFor(ctx context.Context, r *run) (project.Script, error) {
	if r.script != nil {
		return *r.script, nil
	}
	script, ok, err := e.states.LoadScript(ctx, r.state.ProjectID)
	if err != nil {
		return project.Script{}, err
	}
	if !ok {
		return project.Script{}, services.Wrap(services.ErrPrecondition, string(pipeline.StageGenerateAudio), "load script",
			"no persisted script for project", errors.New("script missing"))
	}
	r.script = &script
	return script, nil
}
