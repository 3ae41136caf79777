package testsupport

import (
	"path/filepath"
	"testing"

	"proofbuild/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Generator keys are filled with placeholders so RequireGenerators passes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Store.Backend = config.StoreFilesystem
	cfgVal.Store.Root = filepath.Join(base, "objects")
	cfgVal.Script.APIKey = "test"
	cfgVal.Audio.APIKey = "test"
	cfgVal.Retry.BaseDelayMS = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMemoryStore switches the object store backend to the in-memory store.
func WithMemoryStore() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.StoreMemory
		b.cfg.Store.Root = ""
	}
}

// WithClaims enables the per-project claim lease.
func WithClaims(ttlSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poller.ClaimEnabled = true
		b.cfg.Poller.ClaimTTLSeconds = ttlSeconds
	}
}

// WithNtfyTopic points notifications at topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}
