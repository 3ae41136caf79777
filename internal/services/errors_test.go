package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"proofbuild/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "generate-audio", "synthesize", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"generate-audio", "synthesize", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestDetailsKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{services.Wrap(services.ErrValidation, "poll", "decode", "bad manifest", nil), "validation"},
		{services.Wrap(services.ErrPrecondition, "generate-audio", "", "empty narration", nil), "precondition"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrConfiguration, "", "", "missing key", nil)), "configuration"},
		{errors.New("plain"), ""},
	}
	for _, tc := range tests {
		got := services.Details(tc.err)
		if got.Kind != tc.kind {
			t.Fatalf("Details(%v).Kind = %q, want %q", tc.err, got.Kind, tc.kind)
		}
		if got.Message != tc.err.Error() {
			t.Fatalf("unexpected message %q", got.Message)
		}
	}
	if got := services.Details(nil); got.Kind != "" || got.Message != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}

func TestIsPermanent(t *testing.T) {
	if !services.IsPermanent(services.Wrap(services.ErrValidation, "", "", "x", nil)) {
		t.Fatal("validation errors must be permanent")
	}
	if services.IsPermanent(services.Wrap(services.ErrTransient, "", "", "x", nil)) {
		t.Fatal("transient errors must not be permanent")
	}
	if services.IsPermanent(errors.New("plain")) {
		t.Fatal("unmarked errors must not be permanent")
	}
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

func TestHTTPStatus(t *testing.T) {
	wrapped := services.Wrap(services.ErrExternalService, "", "call", "", statusErr{code: 503})
	if code, ok := services.HTTPStatus(wrapped); !ok || code != 503 {
		t.Fatalf("expected 503, got %d (ok=%v)", code, ok)
	}
	if _, ok := services.HTTPStatus(errors.New("plain")); ok {
		t.Fatal("plain errors carry no status")
	}
}
