package daemonrun_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"proofbuild/internal/daemonrun"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/runlog"
	"proofbuild/internal/testsupport"
)

const scriptJSON = `{"segments":[{"text":"We shipped the parser.","startTime":0,"duration":3},{"text":"Tests pass.","startTime":3,"duration":2}],"totalDuration":5}`

func providerServers(t *testing.T, audioStatus ...int) (scriptURL, audioURL string, audioCalls *atomic.Int32) {
	t.Helper()
	scripts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": scriptJSON}}},
		})
	}))
	t.Cleanup(scripts.Close)

	audioCalls = &atomic.Int32{}
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(audioCalls.Add(1))
		if call <= len(audioStatus) {
			w.WriteHeader(audioStatus[call-1])
			_, _ = w.Write([]byte(`{"detail":{"message":"busy"}}`))
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/") {
			t.Errorf("unexpected audio path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	}))
	t.Cleanup(audio.Close)
	return scripts.URL, audio.URL, audioCalls
}

func TestBuildPollsProjectToReady(t *testing.T) {
	scriptURL, audioURL, audioCalls := providerServers(t, http.StatusServiceUnavailable)
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	cfg.Script.BaseURL = scriptURL
	cfg.Audio.BaseURL = audioURL

	ctx := context.Background()
	rt, err := daemonrun.Build(ctx, cfg, nil, daemonrun.BuildOptions{WithGenerators: true, WithRunLog: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	testsupport.SeedManifest(t, rt.States, "p1")
	result, err := rt.Poller.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed project, got %+v", result)
	}
	if got := audioCalls.Load(); got != 2 {
		t.Fatalf("expected one retried audio call, got %d calls", got)
	}

	state, ok, err := rt.States.Load(ctx, "p1")
	if err != nil || !ok || state.Stage != pipeline.StageReady {
		t.Fatalf("expected ready state, got %+v ok=%v err=%v", state, ok, err)
	}
	obj, err := rt.Store.Get(ctx, project.AudioKey("p1"))
	if err != nil || string(obj.Data) != "ID3-mp3-bytes" {
		t.Fatalf("unexpected audio object %q err=%v", obj.Data, err)
	}

	entries, err := rt.Runs.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != runlog.OutcomeReady {
		t.Fatalf("unexpected ledger %+v", entries)
	}
	if _, err := os.Stat(cfg.RunLogPath()); err != nil {
		t.Fatalf("expected run ledger on disk: %v", err)
	}
}

func TestBuildReadOnlyNeedsNoKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Audio.APIKey = ""
	cfg.Script.APIKey = ""

	rt, err := daemonrun.Build(context.Background(), cfg, nil, daemonrun.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if rt.States == nil || rt.Poller != nil || rt.Runs != nil {
		t.Fatalf("unexpected read-only runtime %+v", rt)
	}
	if _, err := os.Stat(cfg.Store.Root); err != nil {
		t.Fatalf("expected filesystem store root created: %v", err)
	}
}

func TestBuildRequiresAudioKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	cfg.Audio.APIKey = ""

	if _, err := daemonrun.Build(context.Background(), cfg, nil, daemonrun.BuildOptions{WithGenerators: true}); err == nil || !strings.Contains(err.Error(), "audio.api_key") {
		t.Fatalf("expected missing audio key error, got %v", err)
	}
}

func TestBuildWiresClaimsAndNotifications(t *testing.T) {
	scriptURL, audioURL, _ := providerServers(t)
	var titles []string
	var mu sync.Mutex
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithMemoryStore(),
		testsupport.WithClaims(60),
		testsupport.WithNtfyTopic(ntfy.URL),
	)
	cfg.Script.BaseURL = scriptURL
	cfg.Audio.BaseURL = audioURL

	ctx := context.Background()
	rt, err := daemonrun.Build(ctx, cfg, nil, daemonrun.BuildOptions{WithGenerators: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	testsupport.SeedManifest(t, rt.States, "p2")
	result, err := rt.Poller.Poll(ctx)
	if err != nil || result.Processed != 1 {
		t.Fatalf("unexpected poll result %+v err=%v", result, err)
	}
	if _, err := rt.Store.Get(ctx, project.ClaimKey("p2")); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected claim released after run, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || !strings.Contains(titles[0], "Ready") {
		t.Fatalf("expected one ready notification, got %q", titles)
	}
}
