package runlog_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proofbuild/internal/pipeline"
	"proofbuild/internal/runlog"
	"proofbuild/internal/testsupport"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	entries := []runlog.Entry{
		{RunID: "r1", ProjectID: "p1", StartedAt: base, FinishedAt: base.Add(5 * time.Second),
			StartStage: pipeline.StageIngest, FinalStage: pipeline.StageReady, Outcome: runlog.OutcomeReady},
		{RunID: "r2", ProjectID: "p2", Trigger: runlog.TriggerResume, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second),
			StartStage: pipeline.StageGenerateAudio, FinalStage: pipeline.StageError, Outcome: runlog.OutcomeError, ErrorMessage: "http 503"},
		{RunID: "r3", ProjectID: "p1", StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(2 * time.Minute),
			StartStage: pipeline.StageReady, FinalStage: pipeline.StageReady, Outcome: runlog.OutcomeSkipped},
	}
	for _, entry := range entries {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record %s: %v", entry.RunID, err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].RunID != "r3" || recent[1].RunID != "r2" {
		t.Fatalf("unexpected recent runs %+v", recent)
	}
	if recent[1].Trigger != runlog.TriggerResume || recent[1].ErrorMessage != "http 503" || recent[1].Duration() != time.Second {
		t.Fatalf("unexpected entry %+v", recent[1])
	}
	if recent[0].Trigger != runlog.TriggerPoll {
		t.Fatalf("expected default trigger, got %q", recent[0].Trigger)
	}

	forP1, err := store.ForProject(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("ForProject: %v", err)
	}
	if len(forP1) != 2 || forP1[0].RunID != "r3" || forP1[1].RunID != "r1" {
		t.Fatalf("unexpected project runs %+v", forP1)
	}
	if !forP1[1].StartedAt.Equal(base) || forP1[1].FinalStage != pipeline.StageReady {
		t.Fatalf("unexpected round trip %+v", forP1[1])
	}
}

func TestRecordRequiresIDs(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), runlog.Entry{ProjectID: "p1"}); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now().UTC()
	if err := store.Record(context.Background(), runlog.Entry{RunID: "r1", ProjectID: "p1", StartedAt: now, FinishedAt: now, Outcome: runlog.OutcomeReady}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.Recent(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected persisted run, got %v (err=%v)", runs, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := runlog.Open(path); !errors.Is(err, runlog.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenFromConfigUsesDataDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRunLog(t, cfg)
	if store.Path() != cfg.RunLogPath() {
		t.Fatalf("expected ledger at %s, got %s", cfg.RunLogPath(), store.Path())
	}
	if !strings.HasPrefix(store.Path(), cfg.Paths.DataDir) {
		t.Fatalf("expected ledger under data dir %s, got %s", cfg.Paths.DataDir, store.Path())
	}
}
