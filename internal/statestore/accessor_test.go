package statestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
)

func newAccessor(t *testing.T, now time.Time) (*statestore.Accessor, *objectstore.Memory) {
	t.Helper()
	store := objectstore.NewMemory()
	clock := func() time.Time { return now }
	return statestore.New(store, pipeline.DefaultTable(), statestore.WithClock(clock)), store
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	accessor, store := newAccessor(t, now)
	ctx := context.Background()

	first, err := accessor.GetOrCreate(ctx, "p1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.Stage != pipeline.StageIngest || !first.CreatedAt.Equal(now) {
		t.Fatalf("unexpected initial state %+v", first)
	}
	second, err := accessor.GetOrCreate(ctx, "p1")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if second.ProjectID != first.ProjectID || second.Stage != first.Stage ||
		!second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.Equal(first.UpdatedAt) ||
		second.Metadata != first.Metadata {
		t.Fatalf("second read differs: %+v vs %+v", second, first)
	}
	if got := store.Writes(project.StateKey("p1")); got != 1 {
		t.Fatalf("expected a single write, got %d", got)
	}
}

func TestGetOrCreateRejectsBadID(t *testing.T) {
	accessor, _ := newAccessor(t, time.Now())
	if _, err := accessor.GetOrCreate(context.Background(), "a/b"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIsAlreadyProcessed(t *testing.T) {
	now := time.Now().UTC()
	accessor, store := newAccessor(t, now)
	ctx := context.Background()

	processed, err := accessor.IsAlreadyProcessed(ctx, "p1")
	if err != nil || processed {
		t.Fatalf("new project: processed=%v err=%v", processed, err)
	}

	state, err := accessor.GetOrCreate(ctx, "p1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if processed, _ := accessor.IsAlreadyProcessed(ctx, "p1"); processed {
		t.Fatal("ingest state must not count as processed")
	}

	if err := accessor.Save(ctx, state.Advance(pipeline.StageClassify, now)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if processed, _ := accessor.IsAlreadyProcessed(ctx, "p1"); !processed {
		t.Fatal("classify state must count as processed")
	}

	failed := state.Failed(project.ErrorState{Stage: pipeline.StageIngest, Message: "x", Timestamp: now}, now)
	if err := accessor.Save(ctx, failed); err != nil {
		t.Fatalf("Save failed state: %v", err)
	}
	if processed, _ := accessor.IsAlreadyProcessed(ctx, "p1"); !processed {
		t.Fatal("error state must count as processed")
	}

	if err := store.Put(ctx, project.StateKey("p2"), []byte("{not json"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if processed, err := accessor.IsAlreadyProcessed(ctx, "p2"); err != nil || processed {
		t.Fatalf("invalid state: processed=%v err=%v", processed, err)
	}
}

func TestSaveRejectsUnknownStage(t *testing.T) {
	accessor, _ := newAccessor(t, time.Now())
	state := project.NewState("p1", pipeline.Stage("published"), time.Now())
	if err := accessor.Save(context.Background(), state); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListStatesSkipsInvalid(t *testing.T) {
	now := time.Now().UTC()
	accessor, store := newAccessor(t, now)
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		if _, err := accessor.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate %s: %v", id, err)
		}
	}
	_ = store.Put(ctx, project.StateKey("broken"), []byte("[]"), "")
	_ = store.Put(ctx, "state/notes.txt", []byte("x"), "")

	states, err := accessor.ListStates(ctx)
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(states) != 2 || states[0].ProjectID != "a" || states[1].ProjectID != "b" {
		t.Fatalf("unexpected states %+v", states)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	accessor, _ := newAccessor(t, now)
	ctx := context.Background()

	if _, err := accessor.LoadManifest(ctx, "p1"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	manifest, err := project.NewManifest("p1", project.ArtifactCollection{}, now)
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	if err := accessor.PutManifest(ctx, manifest); err != nil {
		t.Fatalf("PutManifest: %v", err)
	}
	if err := accessor.PutManifest(ctx, manifest); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error on second write, got %v", err)
	}
	loaded, err := accessor.LoadManifest(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.ProjectID != "p1" || loaded.Metadata.TotalFiles != 0 {
		t.Fatalf("unexpected manifest %+v", loaded)
	}
}

func TestLoadManifestRejectsMismatchedID(t *testing.T) {
	accessor, store := newAccessor(t, time.Now())
	ctx := context.Background()
	body := `{"projectId":"other","version":"1.0","createdAt":"2025-01-01T00:00:00Z","artifacts":{}}`
	_ = store.Put(ctx, project.ManifestKey("p1"), []byte(body), "")
	if _, err := accessor.LoadManifest(ctx, "p1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScriptAndAudio(t *testing.T) {
	now := time.Now().UTC()
	accessor, store := newAccessor(t, now)
	ctx := context.Background()

	if _, ok, err := accessor.LoadScript(ctx, "p1"); ok || err != nil {
		t.Fatalf("expected no script, ok=%v err=%v", ok, err)
	}
	script := project.Script{
		ProjectID:     "p1",
		Version:       project.SchemaVersion,
		CreatedAt:     now,
		Segments:      []project.Segment{{Text: "hi", Duration: 1}},
		TotalDuration: 1,
	}
	if err := accessor.SaveScript(ctx, script); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	loaded, ok, err := accessor.LoadScript(ctx, "p1")
	if err != nil || !ok || loaded.NarrationText() != "hi" {
		t.Fatalf("LoadScript: ok=%v err=%v script=%+v", ok, err, loaded)
	}

	if err := accessor.SaveAudio(ctx, "p1", statestore.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}); err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	obj, err := store.Get(ctx, "audio/p1.m4a")
	if err != nil {
		t.Fatalf("audio not at canonical key: %v", err)
	}
	if obj.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", obj.ContentType)
	}
}
