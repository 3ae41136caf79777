package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"proofbuild/internal/logging"
	"proofbuild/internal/metrics"
	"proofbuild/internal/notifications"
	"proofbuild/internal/project"
	"proofbuild/internal/runlog"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
)

// Executor advances one project through the pipeline.
type Executor interface {
	Execute(ctx context.Context, manifest project.Manifest, state project.State) (project.State, error)
}

// Options wires a Poller.
type Options struct {
	States   *statestore.Accessor
	Executor Executor
	// Runs receives one ledger entry per executor invocation. Optional.
	Runs     runlog.Recorder
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Logger   *slog.Logger
	// UploadsPrefix defaults to project.UploadsPrefix.
	UploadsPrefix string
	Interval      time.Duration
	// ClaimTTL enables the per-project claim lease when positive.
	ClaimTTL time.Duration
	// Owner identifies this process in claim records. Defaults to a uuid.
	Owner string
}

// Result summarizes one poll.
type Result struct {
	CorrelationID  string    `json:"correlationId"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	ManifestsFound int       `json:"manifestsFound"`
	Processed      int       `json:"processed"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
}

// Status is a snapshot of the poller for the status endpoint.
type Status struct {
	Running   bool
	LastPoll  *Result
	LastError string
}

// Poller scans the uploads namespace for manifests.
type Poller struct {
	states   *statestore.Accessor
	executor Executor
	runs     runlog.Recorder
	metrics  *metrics.Metrics
	notifier notifications.Service
	logger   *slog.Logger
	prefix   string
	interval time.Duration
	claimTTL time.Duration
	owner    string

	mu       sync.RWMutex
	running  bool
	lastPoll *Result
	lastErr  error
}

// New validates opts and builds a Poller.
func New(opts Options) (*Poller, error) {
	if opts.States == nil {
		return nil, errors.New("poller: state accessor is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("poller: executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	prefix := strings.TrimSpace(opts.UploadsPrefix)
	if prefix == "" {
		prefix = project.UploadsPrefix
	}
	owner := strings.TrimSpace(opts.Owner)
	if owner == "" {
		owner = uuid.NewString()
	}
	return &Poller{
		states:   opts.States,
		executor: opts.Executor,
		runs:     opts.Runs,
		metrics:  opts.Metrics,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "poller"),
		prefix:   prefix,
		interval: opts.Interval,
		claimTTL: opts.ClaimTTL,
		owner:    owner,
	}, nil
}

// Interval returns the configured poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls immediately and then on every interval tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poller: interval must be positive, got %s", p.interval)
	}
	p.setRunning(true)
	defer p.setRunning(false)

	p.logger.Info("poll loop started", logging.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			if notifyErr := p.notifier.NotifyPollFailed(ctx, err); notifyErr != nil {
				p.logger.Debug("poll failure notification failed", logging.Error(notifyErr))
			}
		}
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one discovery pass. The returned error is non-nil only when the
// uploads namespace cannot be listed; per-project failures are counted in
// the Result.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	result := Result{CorrelationID: uuid.NewString(), StartedAt: time.Now().UTC()}
	ctx = services.WithRequestID(ctx, result.CorrelationID)
	logger := logging.WithContext(ctx, p.logger)
	p.metrics.IncPolls()

	logger.Info("poll started", logging.String(logging.FieldEventType, "poll_start"))
	ids, err := p.discover(ctx)
	if err != nil {
		p.metrics.IncPollErrors()
		result.FinishedAt = time.Now().UTC()
		p.finish(result, err)
		logging.ErrorWithContext(logger, "poll failed", "poll_failure",
			logging.String(logging.FieldErrorHint, "check object store access and credentials"),
			logging.Error(err),
		)
		return result, err
	}
	result.ManifestsFound = len(ids)
	p.metrics.SetManifestsFound(len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		switch p.processProject(ctx, logger, id) {
		case runlog.OutcomeReady:
			result.Processed++
		case runlog.OutcomeError:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	result.FinishedAt = time.Now().UTC()
	p.finish(result, nil)
	logger.Info("poll completed",
		logging.String(logging.FieldEventType, "poll_complete"),
		logging.Int("manifests_found", result.ManifestsFound),
		logging.Int("processed", result.Processed),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, ctx.Err()
}

// CountManifests lists the uploads prefix and returns how many manifests it
// holds, without touching state.
func (p *Poller) CountManifests(ctx context.Context) (int, error) {
	ids, err := p.discover(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// discover lists the uploads prefix and returns project ids with manifests,
// in listing order.
func (p *Poller) discover(ctx context.Context) ([]string, error) {
	infos, err := p.states.Store().List(ctx, p.prefix)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "list manifests", p.prefix, err)
	}
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, info := range infos {
		id, ok := project.IDFromManifestKey(info.Key)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// processProject runs one project and reports how it ended. It never
// returns an error; failures are logged and recorded.
func (p *Poller) processProject(ctx context.Context, logger *slog.Logger, id string) runlog.Outcome {
	ctx = services.WithProjectID(ctx, id)
	logger = logging.WithContext(ctx, p.logger)

	processed, err := p.states.IsAlreadyProcessed(ctx, id)
	if err != nil {
		logger.Warn("claim check failed; skipping project this poll",
			logging.String(logging.FieldEventType, "claim_check_failed"),
			logging.String(logging.FieldErrorHint, "check object store access"),
			logging.String(logging.FieldImpact, "project retried on next poll"),
			logging.Error(err),
		)
		p.metrics.IncProject(metrics.OutcomeSkipped)
		return runlog.OutcomeSkipped
	}
	if processed {
		logger.Debug("project already processed")
		p.metrics.IncProject(metrics.OutcomeSkipped)
		return runlog.OutcomeSkipped
	}

	if p.claimTTL > 0 {
		claim, acquired, err := p.states.AcquireClaim(ctx, id, p.owner, p.claimTTL)
		if err != nil {
			logger.Warn("claim acquisition failed; skipping project this poll",
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check object store access"),
				logging.String(logging.FieldImpact, "project retried on next poll"),
				logging.Error(err),
			)
			p.metrics.IncProject(metrics.OutcomeSkipped)
			return runlog.OutcomeSkipped
		}
		if !acquired {
			logger.Info("project claimed by another poller",
				logging.String("claim_owner", claim.Owner),
				logging.Any("claim_expires_at", claim.ExpiresAt),
			)
			p.metrics.IncProject(metrics.OutcomeSkipped)
			return runlog.OutcomeSkipped
		}
		defer func() {
			if err := p.states.ReleaseClaim(context.WithoutCancel(ctx), claim); err != nil {
				logger.Warn("claim release failed",
					logging.String(logging.FieldEventType, "claim_release_failed"),
					logging.String(logging.FieldErrorHint, "claim expires on its own"),
					logging.String(logging.FieldImpact, "project blocked until claim ttl elapses"),
					logging.Error(err),
				)
			}
		}()
	}

	_, outcome, _ := p.execute(ctx, logger, id, runlog.TriggerPoll)
	p.metrics.IncProject(string(outcome))
	return outcome
}

// execute loads the manifest and state for id and runs the executor once,
// recording the run in the ledger.
func (p *Poller) execute(ctx context.Context, logger *slog.Logger, id, trigger string) (project.State, runlog.Outcome, error) {
	entry := runlog.Entry{
		RunID:     uuid.NewString(),
		ProjectID: id,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	if correlationID, ok := services.RequestIDFromContext(ctx); ok && trigger == runlog.TriggerPoll {
		entry.RunID = correlationID + "/" + id
	}

	state, err := p.run(ctx, id, &entry)
	entry.FinishedAt = time.Now().UTC()
	entry.FinalStage = state.Stage
	switch {
	case err != nil:
		entry.Outcome = runlog.OutcomeError
		entry.ErrorMessage = err.Error()
		logger.Error("project failed",
			logging.String(logging.FieldEventType, "project_failed"),
			logging.String(logging.FieldErrorHint, "inspect state/<id>.json error details"),
			logging.Error(err),
		)
	case state.IsReady():
		entry.Outcome = runlog.OutcomeReady
	default:
		entry.Outcome = runlog.OutcomeSkipped
	}
	p.record(ctx, logger, entry)
	return state, entry.Outcome, err
}

func (p *Poller) run(ctx context.Context, id string, entry *runlog.Entry) (project.State, error) {
	manifest, err := p.states.LoadManifest(ctx, id)
	if err != nil {
		return project.State{}, err
	}
	state, err := p.states.GetOrCreate(ctx, id)
	if err != nil {
		return project.State{}, err
	}
	entry.StartStage = state.Stage
	return p.executor.Execute(ctx, manifest, state)
}

func (p *Poller) record(ctx context.Context, logger *slog.Logger, entry runlog.Entry) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("run ledger write failed",
			logging.String(logging.FieldEventType, "runlog_write_failed"),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.String(logging.FieldImpact, "history is missing this run"),
			logging.Error(err),
		)
	}
}

// Resume runs the executor once for a project that is stuck in a
// non-terminal stage. Terminal projects are refused.
func (p *Poller) Resume(ctx context.Context, id string) (project.State, error) {
	ctx = services.WithProjectID(ctx, id)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, p.logger)

	state, ok, err := p.states.Load(ctx, id)
	if err != nil {
		return project.State{}, err
	}
	if ok && state.IsTerminal() {
		return state, services.Wrap(services.ErrPrecondition, string(state.Stage), "resume",
			fmt.Sprintf("project %s is already %s", id, state.Stage), nil)
	}
	logger.Info("resuming project", logging.String(logging.FieldEventType, "project_resume"))
	state, _, err = p.execute(ctx, logger, id, runlog.TriggerResume)
	return state, err
}

// Status returns the latest poll diagnostics.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := Status{Running: p.running}
	if p.lastPoll != nil {
		copy := *p.lastPoll
		status.LastPoll = &copy
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	return status
}

func (p *Poller) finish(result Result, err error) {
	p.mu.Lock()
	p.lastPoll = &result
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Poller) setRunning(running bool) {
	p.mu.Lock()
	p.running = running
	p.mu.Unlock()
}
