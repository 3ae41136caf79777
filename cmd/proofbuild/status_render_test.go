package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
)

func TestStageLabelColor(t *testing.T) {
	if got := stageLabel(pipeline.StageReady, false); got != "ready" {
		t.Fatalf("unexpected plain label %q", got)
	}
	got := stageLabel(pipeline.StageError, true)
	if !strings.HasPrefix(got, ansiRed) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected red label, got %q", got)
	}
}

func TestStateDetailLinesIncludeError(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	state := project.NewState("p1", pipeline.StageIngest, now).Failed(project.ErrorState{
		Stage:   pipeline.StageGenerateAudio,
		Message: "elevenlabs: http 503",
	}, now)

	lines := strings.Join(stateDetailLines(state, false), "\n")
	requireContains(t, lines, "Failed at:")
	requireContains(t, lines, "generate-audio")
	requireContains(t, lines, "elevenlabs: http 503")
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short  ", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestShouldColorizeBuffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}
