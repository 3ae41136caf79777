package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"proofbuild/internal/audiogen"
	"proofbuild/internal/logging"
	"proofbuild/internal/notifications"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/retry"
	"proofbuild/internal/scriptgen"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
)

// Options wires an Executor.
type Options struct {
	States        *statestore.Accessor
	Scripts       scriptgen.Generator
	Audio         audiogen.Generator
	Retrier       *retry.Retrier
	Notifier      notifications.Service
	Logger        *slog.Logger
	ScriptOptions scriptgen.Options
	AudioOptions  audiogen.Options
}

// Executor runs the pipeline for one project at a time.
type Executor struct {
	states     *statestore.Accessor
	table      *pipeline.Table
	scripts    scriptgen.Generator
	audio      audiogen.Generator
	retrier    *retry.Retrier
	notifier   notifications.Service
	logger     *slog.Logger
	scriptOpts scriptgen.Options
	audioOpts  audiogen.Options
	steps      map[pipeline.Stage]step
}

// step performs the work attached to a stage. Progress updates it makes are
// persisted through r.state.
type step func(ctx context.Context, r *run) error

// run carries per-invocation data through the walk.
type run struct {
	manifest project.Manifest
	state    project.State
	script   *project.Script
	logger   *slog.Logger
}

// New validates opts and builds an Executor.
func New(opts Options) (*Executor, error) {
	if opts.States == nil {
		return nil, errors.New("executor: state accessor is required")
	}
	if opts.Scripts == nil || opts.Audio == nil {
		return nil, errors.New("executor: script and audio generators are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	e := &Executor{
		states:     opts.States,
		table:      opts.States.Table(),
		scripts:    opts.Scripts,
		audio:      opts.Audio,
		retrier:    opts.Retrier,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "executor"),
		scriptOpts: opts.ScriptOptions,
		audioOpts:  opts.AudioOptions,
	}
	e.steps = map[pipeline.Stage]step{
		pipeline.StageGenerateScript: e.generateScript,
		pipeline.StageGenerateAudio:  e.generateAudio,
	}
	return e, nil
}

// Execute walks state forward until it reaches a terminal stage. The returned
// state is the last one persisted. On failure the error state has been
// persisted and the original error is returned.
func (e *Executor) Execute(ctx context.Context, manifest project.Manifest, state project.State) (project.State, error) {
	if state.IsTerminal() {
		return state, nil
	}
	ctx = services.WithProjectID(ctx, state.ProjectID)
	r := &run{
		manifest: manifest,
		state:    state,
		logger:   logging.WithContext(ctx, e.logger),
	}
	if manifest.ProjectID != state.ProjectID {
		err := services.Wrap(services.ErrPrecondition, string(state.Stage), "execute",
			fmt.Sprintf("manifest %q does not belong to project %q", manifest.ProjectID, state.ProjectID), nil)
		return e.fail(ctx, r, err)
	}

	started := time.Now()
	for !r.state.IsTerminal() {
		current := r.state.Stage
		stageCtx := services.WithStage(ctx, string(current))
		r.logger = logging.WithContext(stageCtx, e.logger)

		if work, ok := e.steps[current]; ok {
			r.logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
			if err := work(stageCtx, r); err != nil {
				return e.fail(stageCtx, r, err)
			}
			r.logger.Info("stage completed", logging.String(logging.FieldEventType, "stage_complete"))
		}

		next, err := e.nextStage(current)
		if err != nil {
			return e.fail(stageCtx, r, err)
		}
		if err := e.transition(stageCtx, r, next); err != nil {
			return e.fail(stageCtx, r, err)
		}
	}

	r.logger.Info("project ready",
		logging.String(logging.FieldEventType, "project_ready"),
		logging.Duration("duration", time.Since(started)),
	)
	if err := e.notifier.NotifyProjectReady(ctx, r.state.ProjectID, time.Since(started)); err != nil {
		r.logger.Debug("ready notification failed", logging.Error(err))
	}
	return r.state, nil
}

// nextStage returns the table successor of current, or the final stage once
// no later stage has work attached.
func (e *Executor) nextStage(current pipeline.Stage) (pipeline.Stage, error) {
	def, ok := e.table.Definition(current)
	if !ok {
		return "", services.Wrap(services.ErrValidation, string(current), "advance", "stage is not in the table", nil)
	}
	if !e.hasWorkAfter(def.Order) {
		return e.table.Final().Stage, nil
	}
	next, ok := e.table.Next(current)
	if !ok {
		return "", services.Wrap(services.ErrValidation, string(current), "advance", "no next stage", nil)
	}
	return next.Stage, nil
}

func (e *Executor) hasWorkAfter(order int) bool {
	for _, def := range e.table.Stages() {
		if def.Order <= order {
			continue
		}
		if _, ok := e.steps[def.Stage]; ok {
			return true
		}
	}
	return false
}

func (e *Executor) transition(ctx context.Context, r *run, next pipeline.Stage) error {
	updated := r.state.Advance(next, e.states.Now())
	if err := e.states.Save(ctx, updated); err != nil {
		return err
	}
	r.logger.Debug("stage transition",
		logging.String("from", string(r.state.Stage)),
		logging.String("to", string(next)),
		logging.String(logging.FieldEventType, "stage_transition"),
	)
	r.state = updated
	return nil
}

func (e *Executor) saveProgress(ctx context.Context, r *run, update func(project.Progress) project.Progress) error {
	updated := r.state.WithProgress(update, e.states.Now())
	if err := e.states.Save(ctx, updated); err != nil {
		return err
	}
	r.state = updated
	return nil
}

// fail persists an ErrorState built from cause and returns cause.
func (e *Executor) fail(ctx context.Context, r *run, cause error) (project.State, error) {
	failedAt := r.state.Stage
	now := e.states.Now()
	message := strings.TrimSpace(cause.Error())
	details := map[string]any{
		"error": message,
		"stage": string(failedAt),
	}
	if code, ok := services.HTTPStatus(cause); ok {
		details["httpStatus"] = code
	}
	if kind := services.Details(cause).Kind; kind != "" {
		details["kind"] = kind
	}
	failed := r.state.Failed(project.ErrorState{
		Stage:     failedAt,
		Message:   message,
		Code:      project.PipelineErrorCode,
		Timestamp: now,
		Details:   details,
	}, now)

	r.logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorHint, errorHint(cause)),
		logging.String("error_message", message),
		logging.Error(cause),
	)
	if err := e.states.Save(ctx, failed); err != nil {
		r.logger.Error("failed to persist error state", logging.Error(err))
	} else {
		r.state = failed
	}
	if err := e.notifier.NotifyProjectFailed(ctx, failed.ProjectID, string(failedAt), cause); err != nil {
		r.logger.Debug("failure notification failed", logging.Error(err))
	}
	return r.state, cause
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check provider API keys and config"
	case errors.Is(err, services.ErrPrecondition):
		return "inspect the generated script; use resume after fixing"
	case errors.Is(err, services.ErrValidation):
		return "inspect the manifest or model output"
	default:
		return "provider or storage failure; check connectivity and retry with resume"
	}
}
