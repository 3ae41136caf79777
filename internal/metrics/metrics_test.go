package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func assertSeries(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, series := range want {
		if !strings.Contains(body, series) {
			t.Fatalf("exposition missing %q:\n%s", series, body)
		}
	}
}

func TestCountersExposed(t *testing.T) {
	m := New()
	m.IncPolls()
	m.IncPolls()
	m.IncPollErrors()
	m.SetManifestsFound(3)
	m.IncProject(OutcomeReady)
	m.IncProject(OutcomeError)
	m.IncProject(OutcomeError)
	m.IncRetries("synthesize")

	assertSeries(t, scrape(t, m),
		"proofbuild_polls_total 2",
		"proofbuild_poll_errors_total 1",
		"proofbuild_manifests_found 3",
		`proofbuild_projects_total{outcome="ready"} 1`,
		`proofbuild_projects_total{outcome="error"} 2`,
		`proofbuild_generation_retries_total{operation="synthesize"} 1`,
	)
}

func TestRequestMiddlewareCountsErrors(t *testing.T) {
	m := New()
	handler := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/ok", "/missing", "/ok"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assertSeries(t, scrape(t, m),
		"proofbuild_http_requests_total 3",
		"proofbuild_http_errors_total 1",
	)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncPolls()
	m.IncProject(OutcomeSkipped)
	m.IncRetries("generate")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
