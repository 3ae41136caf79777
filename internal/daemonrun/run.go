package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"proofbuild/internal/api"
	"proofbuild/internal/config"
	"proofbuild/internal/daemon"
	"proofbuild/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the proofbuild daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := cfg.LogFilePath()
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "proofbuild.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(signalCtx, cfg, logger, BuildOptions{WithGenerators: true, WithRunLog: true})
	if err != nil {
		logger.Error("runtime wiring failed",
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, provider keys, and store access"),
			logging.Error(err),
		)
		return err
	}
	defer rt.Close()

	var server *api.Server
	if cfg.Paths.APIBind != "" {
		router := api.NewRouter(api.Options{
			States:       rt.States,
			Poller:       rt.Poller,
			Runs:         rt.Runs,
			Metrics:      rt.Metrics,
			Logger:       logger,
			Token:        cfg.Paths.APIToken,
			PollInterval: cfg.PollInterval(),
		})
		server = api.NewServer(cfg.Paths.APIBind, router, logger)
	}

	d, err := daemon.New(daemon.Options{
		LockPath: cfg.LockPath(),
		Poller:   rt.Poller,
		Server:   server,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("proofbuild daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
