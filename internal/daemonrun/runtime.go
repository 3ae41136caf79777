package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"proofbuild/internal/audiogen"
	"proofbuild/internal/config"
	"proofbuild/internal/executor"
	"proofbuild/internal/logging"
	"proofbuild/internal/metrics"
	"proofbuild/internal/notifications"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/poller"
	"proofbuild/internal/retry"
	"proofbuild/internal/runlog"
	"proofbuild/internal/scriptgen"
	"proofbuild/internal/statestore"
)

// Retry operation labels.
const (
	operationScript = "generate-script"
	operationAudio  = "synthesize"
)

// BuildOptions selects which parts of the runtime are wired.
type BuildOptions struct {
	// WithGenerators wires the script and audio providers plus the executor
	// and poller. Read-only commands leave it off so they run without keys.
	WithGenerators bool
	// WithRunLog opens the SQLite run ledger.
	WithRunLog bool
}

// Runtime bundles the components built from one Config.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    objectstore.Store
	States   *statestore.Accessor
	Runs     *runlog.Store
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Executor *executor.Executor
	Poller   *poller.Poller

	closers []io.Closer
}

// Build wires a Runtime. The caller must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.New(),
		Notifier: notifications.NewService(cfg.Notifications),
	}
	store, closer, err := objectstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, closer)
	rt.States = statestore.New(store, pipeline.DefaultTable(), statestore.WithLogger(logger))

	if opts.WithRunLog {
		runs, err := runlog.OpenFromConfig(cfg)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		rt.Runs = runs
		rt.closers = append(rt.closers, runs)
	}

	if !opts.WithGenerators {
		return rt, nil
	}
	if err := cfg.RequireGenerators(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	if err := rt.wirePipeline(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wirePipeline(ctx context.Context) error {
	cfg := rt.Config
	policy := retry.PolicyFromConfig(cfg.Retry)

	scripts, closer, err := scriptgen.New(ctx, cfg.Script,
		scriptgen.WithRetrier(rt.retrier(policy, operationScript)))
	if err != nil {
		return fmt.Errorf("script generator: %w", err)
	}
	rt.closers = append(rt.closers, closer)
	audio := audiogen.NewClient(audiogen.ConfigFromAudio(cfg.Audio))

	exec, err := executor.New(executor.Options{
		States:   rt.States,
		Scripts:  scripts,
		Audio:    audio,
		Retrier:  rt.retrier(policy, operationAudio),
		Notifier: rt.Notifier,
		Logger:   rt.Logger,
		ScriptOptions: scriptgen.Options{
			Tone:     cfg.Script.Tone,
			Language: cfg.Script.Language,
		},
	})
	if err != nil {
		return err
	}
	rt.Executor = exec

	var claimTTL time.Duration
	if cfg.Poller.ClaimEnabled {
		claimTTL = cfg.ClaimTTL()
	}
	var runs runlog.Recorder
	if rt.Runs != nil {
		runs = rt.Runs
	}
	p, err := poller.New(poller.Options{
		States:        rt.States,
		Executor:      exec,
		Runs:          runs,
		Metrics:       rt.Metrics,
		Notifier:      rt.Notifier,
		Logger:        rt.Logger,
		UploadsPrefix: cfg.Poller.UploadsPrefix,
		Interval:      cfg.PollInterval(),
		ClaimTTL:      claimTTL,
	})
	if err != nil {
		return err
	}
	rt.Poller = p
	return nil
}

// retrier builds a Retrier that logs each retry and counts it under
// operation.
func (rt *Runtime) retrier(policy retry.Policy, operation string) *retry.Retrier {
	logger := logging.NewComponentLogger(rt.Logger, "retry")
	return retry.New(policy, retry.WithNotify(func(attempt int, delay time.Duration, err error) {
		rt.Metrics.IncRetries(operation)
		logger.Warn("retrying generator call",
			logging.String("operation", operation),
			logging.Attempt(attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldEventType, "generator_retry"),
			logging.String(logging.FieldErrorHint, "provider returned a transient failure"),
			logging.String(logging.FieldImpact, "stage delayed by backoff"),
			logging.Error(err),
		)
	}))
}

// Close releases every resource the runtime opened, in reverse order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if rt.closers[i] == nil {
			continue
		}
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("store_backend", cfg.Store.Backend),
		logging.String("store_location", storeLocation(cfg.Store)),
		logging.String("script_provider", cfg.Script.Provider),
		logging.Bool("script_key_present", strings.TrimSpace(cfg.Script.APIKey) != ""),
		logging.Bool("audio_key_present", strings.TrimSpace(cfg.Audio.APIKey) != ""),
		logging.Duration("poll_interval", cfg.PollInterval()),
		logging.Bool("claims_enabled", cfg.Poller.ClaimEnabled),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func storeLocation(cfg config.Store) string {
	switch cfg.Backend {
	case config.StoreGCS:
		return "gs://" + cfg.Bucket
	case config.StoreMemory:
		return "memory"
	default:
		return cfg.Root
	}
}
