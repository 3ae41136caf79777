package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"proofbuild/internal/api"
	"proofbuild/internal/logging"
	"proofbuild/internal/poller"
)

// Poller is the discovery loop the daemon drives.
type Poller interface {
	Run(ctx context.Context) error
	Status() poller.Status
}

// Options wires a Daemon.
type Options struct {
	LockPath string
	Poller   Poller
	// Server is optional; without it only the poll loop runs.
	Server *api.Server
	Logger *slog.Logger
}

// Daemon enforces single-instance execution of the poll loop and API.
type Daemon struct {
	lockPath string
	lock     *flock.Flock
	poller   Poller
	server   *api.Server
	logger   *slog.Logger

	running atomic.Bool
	addr    atomic.Value
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	APIAddress   string
	Poller       poller.Status
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.LockPath == "" || opts.Poller == nil {
		return nil, errors.New("daemon requires a lock path and poller")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		lockPath: opts.LockPath,
		lock:     flock.New(opts.LockPath),
		poller:   opts.Poller,
		server:   opts.Server,
		logger:   logging.NewComponentLogger(logger, "daemon"),
	}, nil
}

// Run acquires the daemon lock and blocks until ctx is cancelled or either
// the poll loop or the API server fails.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another proofbuild daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock",
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
				logging.String(logging.FieldImpact, "next start may report a running instance"),
				logging.Error(err),
			)
		}
	}()

	var listener net.Listener
	if d.server != nil {
		listener, err = d.server.Listen()
		if err != nil {
			return err
		}
		d.addr.Store(listener.Addr().String())
	}

	d.logger.Info("proofbuild daemon started", logging.String("lock", d.lockPath))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.poller.Run(gctx)
	})
	if listener != nil {
		g.Go(func() error {
			return d.server.Serve(gctx, listener)
		})
	}
	err = g.Wait()
	d.addr.Store("")
	d.logger.Info("proofbuild daemon stopped")
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	addr, _ := d.addr.Load().(string)
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		APIAddress:   addr,
		Poller:       d.poller.Status(),
	}
}
