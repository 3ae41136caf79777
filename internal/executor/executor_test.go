package executor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"proofbuild/internal/audiogen"
	"proofbuild/internal/executor"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/retry"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
	"proofbuild/internal/testsupport"
)

type harness struct {
	accessor *statestore.Accessor
	store    *objectstore.Memory
	scripts  *testsupport.FakeScripts
	audio    *testsupport.FakeAudio
	delays   []time.Duration
	exec     *executor.Executor
}

func newHarness(t *testing.T, scripts *testsupport.FakeScripts, audio *testsupport.FakeAudio) *harness {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accessor, store := testsupport.NewAccessor(t, statestore.WithClock(func() time.Time { return now }))
	h := &harness{accessor: accessor, store: store, scripts: scripts, audio: audio}
	retrier := retry.New(retry.DefaultPolicy(), retry.WithSleeper(func(_ context.Context, d time.Duration) error {
		h.delays = append(h.delays, d)
		return nil
	}))
	exec, err := executor.New(executor.Options{
		States:  accessor,
		Scripts: scripts,
		Audio:   audio,
		Retrier: retrier,
	})
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	h.exec = exec
	return h
}

func (h *harness) start(t *testing.T, id string) (project.Manifest, project.State) {
	t.Helper()
	manifest := testsupport.SeedManifest(t, h.accessor, id)
	state, err := h.accessor.GetOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return manifest, state
}

func TestExecuteReachesReady(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{Texts: []string{"Hello.", "World."}}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Stage != pipeline.StageReady {
		t.Fatalf("expected ready, got %s", final.Stage)
	}
	if !final.Metadata.ScriptGenerated || !final.Metadata.AudioGenerated {
		t.Fatalf("expected progress markers set, got %+v", final.Metadata)
	}
	if final.Metadata.ArtifactsProcessed != 1 {
		t.Fatalf("expected 1 artifact processed, got %d", final.Metadata.ArtifactsProcessed)
	}
	if final.Error != nil {
		t.Fatalf("expected no error, got %+v", final.Error)
	}

	persisted, ok, err := h.accessor.Load(context.Background(), "p1")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if persisted.Stage != pipeline.StageReady {
		t.Fatalf("persisted stage = %s", persisted.Stage)
	}
	script, ok, err := h.accessor.LoadScript(context.Background(), "p1")
	if err != nil || !ok {
		t.Fatalf("LoadScript: ok=%v err=%v", ok, err)
	}
	if len(script.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(script.Segments))
	}
	obj, err := h.store.Get(context.Background(), "audio/p1.m4a")
	if err != nil {
		t.Fatalf("audio missing: %v", err)
	}
	if obj.ContentType != audiogen.DefaultContentType {
		t.Fatalf("audio content type = %q", obj.ContentType)
	}
	texts := h.audio.Texts()
	if len(texts) != 1 || texts[0] != "Hello. World." {
		t.Fatalf("unexpected narration sent: %q", texts)
	}
}

func TestExecuteEmptyArtifactsReachesScriptGeneration(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	ctx := context.Background()
	manifest, err := project.NewManifest("p9", project.ArtifactCollection{}, time.Now())
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	if err := h.accessor.PutManifest(ctx, manifest); err != nil {
		t.Fatalf("PutManifest: %v", err)
	}
	state, err := h.accessor.GetOrCreate(ctx, "p9")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	final, err := h.exec.Execute(ctx, manifest, state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls := h.scripts.Calls(); len(calls) != 1 || calls[0] != "p9" {
		t.Fatalf("expected one script generation call, got %q", calls)
	}
	if !final.Metadata.ScriptGenerated {
		t.Fatalf("expected script generated, got %+v", final.Metadata)
	}
	if final.Metadata.ArtifactsProcessed != 0 {
		t.Fatalf("expected 0 artifacts processed, got %d", final.Metadata.ArtifactsProcessed)
	}
}

func TestExecuteAudioRetriesExhausted(t *testing.T) {
	unavailable := &audiogen.StatusError{StatusCode: 503, Message: "service unavailable"}
	h := newHarness(t, &testsupport.FakeScripts{}, testsupport.FailingAudio(unavailable))
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if !errors.Is(err, unavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := len(h.audio.Texts()); got != 4 {
		t.Fatalf("expected 4 synthesis attempts, got %d", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(h.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, h.delays)
	}
	for i := range want {
		if h.delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, h.delays[i], want[i])
		}
	}
	if final.Stage != pipeline.StageError || final.Error == nil {
		t.Fatalf("expected error state, got %+v", final)
	}
	if final.Error.Stage != pipeline.StageGenerateAudio {
		t.Fatalf("expected failure at generate-audio, got %s", final.Error.Stage)
	}
	if final.Error.Code != project.PipelineErrorCode {
		t.Fatalf("unexpected code %q", final.Error.Code)
	}
	if status, ok := final.Error.Details["httpStatus"].(int); !ok || status != 503 {
		t.Fatalf("expected httpStatus 503 in details, got %v", final.Error.Details)
	}
	if !final.Metadata.ScriptGenerated || final.Metadata.AudioGenerated {
		t.Fatalf("unexpected progress %+v", final.Metadata)
	}
	if _, ok, _ := h.accessor.LoadScript(context.Background(), "p1"); !ok {
		t.Fatal("expected script to remain persisted")
	}
	if _, err := h.store.Get(context.Background(), project.AudioKey("p1")); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected no audio object, got %v", err)
	}
}

func TestExecuteAudioRecoversAfterTransientFailures(t *testing.T) {
	unavailable := &audiogen.StatusError{StatusCode: 503, Message: "busy"}
	audio := &testsupport.FakeAudio{Errs: []error{unavailable, unavailable}}
	h := newHarness(t, &testsupport.FakeScripts{}, audio)
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Stage != pipeline.StageReady {
		t.Fatalf("expected ready, got %s", final.Stage)
	}
	if len(audio.Texts()) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(audio.Texts()))
	}
}

func TestExecuteUnauthorizedAudioIsNotRetried(t *testing.T) {
	denied := &audiogen.StatusError{StatusCode: 401, Message: "invalid api key"}
	h := newHarness(t, &testsupport.FakeScripts{}, testsupport.FailingAudio(denied))
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(h.audio.Texts()) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(h.audio.Texts()))
	}
	if final.Error == nil || !strings.Contains(final.Error.Message, "invalid api key") {
		t.Fatalf("expected provider message persisted, got %+v", final.Error)
	}
}

func TestExecuteEmptyNarrationFailsWithoutSynthesis(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{Texts: []string{"   ", "\t"}}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if len(h.audio.Texts()) != 0 {
		t.Fatalf("expected no synthesis calls, got %d", len(h.audio.Texts()))
	}
	if final.Error == nil || final.Error.Stage != pipeline.StageGenerateAudio {
		t.Fatalf("expected failure at generate-audio, got %+v", final.Error)
	}
	if final.Error.Details["kind"] != "precondition" {
		t.Fatalf("expected precondition kind, got %v", final.Error.Details)
	}
}

func TestExecuteScriptFailureRecordsStage(t *testing.T) {
	scripts := &testsupport.FakeScripts{Err: services.Wrap(services.ErrValidation, "", "build script", "segments must not be empty", nil)}
	h := newHarness(t, scripts, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")

	final, err := h.exec.Execute(context.Background(), manifest, state)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if final.Error == nil || final.Error.Stage != pipeline.StageGenerateScript {
		t.Fatalf("expected failure at generate-script, got %+v", final.Error)
	}
	if final.Metadata.ScriptGenerated {
		t.Fatal("script marker must stay unset")
	}
	if len(h.audio.Texts()) != 0 {
		t.Fatal("audio must not run after script failure")
	}
}

func TestExecuteTerminalStatesAreNoOps(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")
	writes := h.store.Writes(project.StateKey("p1"))

	for _, stage := range []pipeline.Stage{pipeline.StageReady, pipeline.StageError} {
		terminal := state
		terminal.Stage = stage
		got, err := h.exec.Execute(context.Background(), manifest, terminal)
		if err != nil {
			t.Fatalf("Execute(%s): %v", stage, err)
		}
		if got.Stage != stage {
			t.Fatalf("stage changed from %s to %s", stage, got.Stage)
		}
	}
	if h.store.Writes(project.StateKey("p1")) != writes {
		t.Fatal("terminal execution must not write state")
	}
	if len(h.scripts.Calls()) != 0 || len(h.audio.Texts()) != 0 {
		t.Fatal("terminal execution must not call generators")
	}
}

func TestExecuteResumeReusesPersistedScript(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")
	ctx := context.Background()

	if err := h.accessor.SaveScript(ctx, testsupport.NarrationScript("p1", "Persisted narration.")); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	resumed := state.Advance(pipeline.StageGenerateScript, h.accessor.Now()).
		WithProgress(func(p project.Progress) project.Progress {
			p.ScriptGenerated = true
			return p
		}, h.accessor.Now())
	if err := h.accessor.Save(ctx, resumed); err != nil {
		t.Fatalf("Save: %v", err)
	}

	final, err := h.exec.Execute(ctx, manifest, resumed)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Stage != pipeline.StageReady {
		t.Fatalf("expected ready, got %s", final.Stage)
	}
	if len(h.scripts.Calls()) != 0 {
		t.Fatalf("expected no script generation, got %d calls", len(h.scripts.Calls()))
	}
	texts := h.audio.Texts()
	if len(texts) != 1 || texts[0] != "Persisted narration." {
		t.Fatalf("expected persisted narration, got %q", texts)
	}
}

func TestExecuteResumeSkipsPersistedAudio(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")
	ctx := context.Background()

	if err := h.accessor.SaveScript(ctx, testsupport.NarrationScript("p1", "Done.")); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := h.accessor.SaveAudio(ctx, "p1", statestore.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}); err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	resumed := state.Advance(pipeline.StageGenerateAudio, h.accessor.Now()).
		WithProgress(func(p project.Progress) project.Progress {
			p.ScriptGenerated = true
			p.AudioGenerated = true
			return p
		}, h.accessor.Now())

	final, err := h.exec.Execute(ctx, manifest, resumed)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if final.Stage != pipeline.StageReady {
		t.Fatalf("expected ready, got %s", final.Stage)
	}
	if len(h.audio.Texts()) != 0 {
		t.Fatal("expected persisted audio to be reused")
	}
}

func TestExecuteResumeWithoutScriptFails(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	manifest, state := h.start(t, "p1")
	resumed := state.Advance(pipeline.StageGenerateAudio, h.accessor.Now())

	final, err := h.exec.Execute(context.Background(), manifest, resumed)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if final.Stage != pipeline.StageError {
		t.Fatalf("expected error stage, got %s", final.Stage)
	}
}

func TestExecuteRejectsForeignManifest(t *testing.T) {
	h := newHarness(t, &testsupport.FakeScripts{}, &testsupport.FakeAudio{})
	_, state := h.start(t, "p1")
	other := testsupport.SeedManifest(t, h.accessor, "p2")

	final, err := h.exec.Execute(context.Background(), other, state)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if final.Stage != pipeline.StageError || final.Error.Stage != pipeline.StageIngest {
		t.Fatalf("expected ingest failure, got %+v", final)
	}
	if len(h.scripts.Calls()) != 0 {
		t.Fatal("generators must not run for a foreign manifest")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := executor.New(executor.Options{}); err == nil {
		t.Fatal("expected error without a state accessor")
	}
	accessor, _ := testsupport.NewAccessor(t)
	if _, err := executor.New(executor.Options{States: accessor}); err == nil {
		t.Fatal("expected error without generators")
	}
}
