package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"proofbuild/internal/logging"
	"proofbuild/internal/metrics"
	"proofbuild/internal/poller"
	"proofbuild/internal/project"
	"proofbuild/internal/runlog"
	"proofbuild/internal/services"
	"proofbuild/internal/statestore"
)

const maxRunLimit = 500

// PollerStatus reports discovery loop diagnostics.
type PollerStatus interface {
	Status() poller.Status
	CountManifests(ctx context.Context) (int, error)
}

// RunReader reads the run ledger.
type RunReader interface {
	Recent(ctx context.Context, limit int) ([]runlog.Entry, error)
	ForProject(ctx context.Context, projectID string, limit int) ([]runlog.Entry, error)
}

// Options wires the HTTP surface.
type Options struct {
	States       *statestore.Accessor
	Poller       PollerStatus
	Runs         RunReader
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Token        string
	PollInterval time.Duration
}

type handler struct {
	states       *statestore.Accessor
	poller       PollerStatus
	runs         RunReader
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewRouter builds the chi router serving health, status, metrics and the
// read-only project API.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handler{
		states:       opts.States,
		poller:       opts.Poller,
		runs:         opts.Runs,
		logger:       logging.NewComponentLogger(logger, "api"),
		pollInterval: opts.PollInterval,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(h.logger))
	r.Use(metrics.RequestMiddleware(opts.Metrics))
	r.Get("/", h.health)
	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))
		r.Get("/runs", h.listRuns)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/state", h.projectState)
			r.Get("/manifest", h.projectManifest)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:              "ok",
		Service:             ServiceName,
		Mode:                "polling",
		PollIntervalSeconds: int(h.pollInterval / time.Second),
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if h.poller == nil {
		writeJSON(w, h.logger, http.StatusOK, StatusResponse{Status: "ok"})
		return
	}
	count, err := h.poller.CountManifests(r.Context())
	if err != nil {
		writeJSON(w, h.logger, http.StatusInternalServerError, StatusErrorResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, FromPollerStatus(h.poller.Status(), count))
}

func (h *handler) projectState(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	state, found, err := h.states.Load(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !found {
		state = project.NewState(id, h.states.Table().Initial().Stage, h.states.Now())
	}
	writeJSON(w, h.logger, http.StatusOK, state)
}

func (h *handler) projectManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	manifest, err := h.states.LoadManifest(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, manifest)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, h.logger, http.StatusOK, RunListResponse{Runs: []runlog.Entry{}})
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = min(parsed, maxRunLimit)
	}

	var (
		entries []runlog.Entry
		err     error
	)
	if id := strings.TrimSpace(r.URL.Query().Get("project")); id != "" {
		entries, err = h.runs.ForProject(r.Context(), id, limit)
	} else {
		entries, err = h.runs.Recent(r.Context(), limit)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []runlog.Entry{}
	}
	writeJSON(w, h.logger, http.StatusOK, RunListResponse{Runs: entries})
}

func (h *handler) projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := project.ValidateID(id); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return "", false
	}
	if h.states == nil {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, ErrorResponse{Error: "state store unavailable"})
		return "", false
	}
	return id, true
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.logger.Warn("api request failed",
			logging.String(logging.FieldEventType, "api_error"),
			logging.String(logging.FieldErrorHint, "check object store access"),
			logging.String(logging.FieldImpact, "client received 500"),
			logging.Error(err),
		)
	}
	writeJSON(w, h.logger, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}
