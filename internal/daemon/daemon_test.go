package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proofbuild/internal/api"
	"proofbuild/internal/daemon"
	"proofbuild/internal/poller"
)

type blockingPoller struct {
	started chan struct{}
	err     error
}

func (p *blockingPoller) Run(ctx context.Context) error {
	close(p.started)
	if p.err != nil {
		return p.err
	}
	<-ctx.Done()
	return nil
}

func (p *blockingPoller) Status() poller.Status { return poller.Status{} }

func waitStarted(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not start")
	}
}

func TestDaemonRunStop(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "proofbuild.lock")
	p := &blockingPoller{started: make(chan struct{})}
	server := api.NewServer("127.0.0.1:0", api.NewRouter(api.Options{}), nil)
	d, err := daemon.New(daemon.Options{LockPath: lockPath, Poller: p, Server: server})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	waitStarted(t, p.started)

	status := d.Status()
	if !status.Running || status.APIAddress == "" {
		t.Fatalf("expected running daemon with address, got %+v", status)
	}
	resp, err := http.Get("http://" + status.APIAddress + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	second, err := daemon.New(daemon.Options{LockPath: lockPath, Poller: &blockingPoller{started: make(chan struct{})}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Run(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonPollerFailureStopsServer(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "proofbuild.lock")
	boom := errors.New("poller exploded")
	p := &blockingPoller{started: make(chan struct{}), err: boom}
	server := api.NewServer("127.0.0.1:0", api.NewRouter(api.Options{}), nil)
	d, err := daemon.New(daemon.Options{LockPath: lockPath, Poller: p, Server: server})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected poller error, got %v", err)
	}
}

func TestNewRequiresPoller(t *testing.T) {
	if _, err := daemon.New(daemon.Options{LockPath: "x"}); err == nil {
		t.Fatal("expected error without poller")
	}
}
