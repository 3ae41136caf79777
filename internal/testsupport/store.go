package testsupport

import (
	"context"
	"testing"
	"time"

	"proofbuild/internal/config"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/runlog"
	"proofbuild/internal/statestore"
)

// NewAccessor returns a state accessor over a fresh in-memory store.
func NewAccessor(t testing.TB, opts ...statestore.Option) (*statestore.Accessor, *objectstore.Memory) {
	t.Helper()
	store := objectstore.NewMemory()
	return statestore.New(store, pipeline.DefaultTable(), opts...), store
}

// SeedManifest writes a manifest for id with one screenshot.
func SeedManifest(t testing.TB, accessor *statestore.Accessor, id string) project.Manifest {
	t.Helper()
	order := 1
	artifacts := project.ArtifactCollection{
		Screenshots: []project.Artifact{{
			Type:     project.ArtifactScreenshot,
			Path:     project.ArtifactKey(id, project.ArtifactScreenshot, "1.png"),
			Filename: "1.png",
			Order:    &order,
		}},
	}
	manifest, err := project.NewManifest(id, artifacts, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	if err := accessor.PutManifest(context.Background(), manifest); err != nil {
		t.Fatalf("PutManifest: %v", err)
	}
	return manifest
}

// MustOpenRunLog opens the run ledger for tests and registers cleanup.
func MustOpenRunLog(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()
	store, err := runlog.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
