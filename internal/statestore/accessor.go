package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"proofbuild/internal/logging"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/services"
)

const jsonContentType = "application/json"

// Accessor provides typed access to project records.
type Accessor struct {
	store  objectstore.Store
	table  *pipeline.Table
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes an Accessor.
type Option func(*Accessor)

// WithClock overrides the time source used for new records.
func WithClock(now func() time.Time) Option {
	return func(a *Accessor) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accessor) {
		a.logger = logging.NewComponentLogger(logger, "statestore")
	}
}

// New constructs an Accessor over store, validating states against table.
func New(store objectstore.Store, table *pipeline.Table, opts ...Option) *Accessor {
	a := &Accessor{
		store:  store,
		table:  table,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store exposes the underlying object store.
func (a *Accessor) Store() objectstore.Store { return a.store }

// Table exposes the stage table records are validated against.
func (a *Accessor) Table() *pipeline.Table { return a.table }

// Now returns the accessor clock reading.
func (a *Accessor) Now() time.Time { return a.now().UTC() }

// Load reads the persisted state. ok is false when no record exists.
func (a *Accessor) Load(ctx context.Context, id string) (project.State, bool, error) {
	obj, err := a.store.Get(ctx, project.StateKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return project.State{}, false, nil
		}
		return project.State{}, false, services.Wrap(services.ErrTransient, "", "load state", id, err)
	}
	state, err := project.DecodeState(obj.Data, a.table)
	if err != nil {
		return project.State{}, true, err
	}
	return state, true, nil
}

// GetOrCreate returns the persisted state, creating and persisting an
// initial record when none exists. A second call is a pure read.
func (a *Accessor) GetOrCreate(ctx context.Context, id string) (project.State, error) {
	state, ok, err := a.Load(ctx, id)
	if err != nil {
		return project.State{}, err
	}
	if ok {
		return state, nil
	}
	if err := project.ValidateID(id); err != nil {
		return project.State{}, services.Wrap(services.ErrValidation, "", "create state", "projectId", err)
	}
	initial := project.NewState(id, a.table.Initial().Stage, a.now())
	if err := a.Save(ctx, initial); err != nil {
		return project.State{}, err
	}
	a.logger.Debug("state created", logging.ProjectID(id))
	return initial, nil
}

// Save overwrites the record with the full snapshot.
func (a *Accessor) Save(ctx context.Context, state project.State) error {
	if err := state.Validate(a.table); err != nil {
		return err
	}
	return a.putJSON(ctx, project.StateKey(state.ProjectID), state, "save state")
}

// IsAlreadyProcessed reports whether the project moved past its initial
// stage. Unreadable or invalid records count as not processed.
func (a *Accessor) IsAlreadyProcessed(ctx context.Context, id string) (bool, error) {
	obj, err := a.store.Get(ctx, project.StateKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return false, nil
		}
		return false, services.Wrap(services.ErrTransient, "", "check state", id, err)
	}
	state, err := project.DecodeState(obj.Data, a.table)
	if err != nil {
		a.logger.Debug("invalid state treated as unprocessed",
			logging.ProjectID(id),
			logging.Error(err),
		)
		return false, nil
	}
	return state.Stage != a.table.Initial().Stage, nil
}

// ListStates returns every readable state record. Invalid records are
// logged and skipped.
func (a *Accessor) ListStates(ctx context.Context) ([]project.State, error) {
	infos, err := a.store.List(ctx, project.StatePrefix)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "list states", "", err)
	}
	states := make([]project.State, 0, len(infos))
	for _, info := range infos {
		id, ok := project.IDFromStateKey(info.Key)
		if !ok {
			continue
		}
		state, found, err := a.Load(ctx, id)
		if err != nil {
			a.logger.Warn("skipping unreadable state",
				logging.ProjectID(id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "state_invalid"),
			)
			continue
		}
		if found {
			states = append(states, state)
		}
	}
	return states, nil
}

// LoadManifest fetches and validates the project's completion manifest.
func (a *Accessor) LoadManifest(ctx context.Context, id string) (project.Manifest, error) {
	obj, err := a.store.Get(ctx, project.ManifestKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return project.Manifest{}, services.Wrap(services.ErrNotFound, "", "load manifest", id, err)
		}
		return project.Manifest{}, services.Wrap(services.ErrTransient, "", "load manifest", id, err)
	}
	manifest, err := project.DecodeManifest(obj.Data)
	if err != nil {
		return project.Manifest{}, err
	}
	if manifest.ProjectID != id {
		return project.Manifest{}, services.Wrap(services.ErrValidation, "", "load manifest",
			fmt.Sprintf("manifest projectId %q does not match key %q", manifest.ProjectID, id), nil)
	}
	return manifest, nil
}

// PutManifest writes the completion signal. An existing manifest is never
// replaced.
func (a *Accessor) PutManifest(ctx context.Context, manifest project.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := a.store.PutIfAbsent(ctx, project.ManifestKey(manifest.ProjectID), data, jsonContentType); err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			return services.Wrap(services.ErrPrecondition, "", "put manifest", "manifest already exists", err)
		}
		return services.Wrap(services.ErrTransient, "", "put manifest", manifest.ProjectID, err)
	}
	return nil
}

// SaveScript persists the generated script.
func (a *Accessor) SaveScript(ctx context.Context, script project.Script) error {
	if err := script.Validate(); err != nil {
		return err
	}
	return a.putJSON(ctx, project.ScriptKey(script.ProjectID), script, "save script")
}

// LoadScript reads a persisted script. ok is false when none exists.
func (a *Accessor) LoadScript(ctx context.Context, id string) (project.Script, bool, error) {
	obj, err := a.store.Get(ctx, project.ScriptKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return project.Script{}, false, nil
		}
		return project.Script{}, false, services.Wrap(services.ErrTransient, "", "load script", id, err)
	}
	script, err := project.DecodeScript(obj.Data)
	if err != nil {
		return project.Script{}, true, err
	}
	return script, true, nil
}

// Audio is a synthesized narration ready to persist.
type Audio struct {
	Data        []byte
	ContentType string
}

// SaveAudio persists narration audio with its declared content type.
func (a *Accessor) SaveAudio(ctx context.Context, id string, audio Audio) error {
	if err := a.store.Put(ctx, project.AudioKey(id), audio.Data, audio.ContentType); err != nil {
		return services.Wrap(services.ErrTransient, "", "save audio", id, err)
	}
	return nil
}

// LoadAudio fetches persisted narration audio.
func (a *Accessor) LoadAudio(ctx context.Context, id string) (Audio, bool, error) {
	obj, err := a.store.Get(ctx, project.AudioKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return Audio{}, false, nil
		}
		return Audio{}, false, services.Wrap(services.ErrTransient, "", "load audio", id, err)
	}
	return Audio{Data: obj.Data, ContentType: obj.ContentType}, true, nil
}

func (a *Accessor) putJSON(ctx context.Context, key string, value any, operation string) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: encode: %w", operation, err)
	}
	if err := a.store.Put(ctx, key, data, jsonContentType); err != nil {
		return services.Wrap(services.ErrTransient, "", operation, key, err)
	}
	return nil
}
