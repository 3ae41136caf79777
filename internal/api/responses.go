package api

import (
	"time"

	"proofbuild/internal/poller"
	"proofbuild/internal/runlog"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "proofbuild"

// HealthResponse is served at /health.
type HealthResponse struct {
	Status              string `json:"status"`
	Service             string `json:"service"`
	Mode                string `json:"mode"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
}

// StatusResponse is served at /status.
type StatusResponse struct {
	Status         string     `json:"status"`
	ManifestsFound int        `json:"manifestsFound"`
	Running        bool       `json:"running"`
	LastPoll       *time.Time `json:"lastPoll,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	Processed      int        `json:"processed"`
	Failed         int        `json:"failed"`
	Skipped        int        `json:"skipped"`
}

// StatusErrorResponse is served at /status when the store cannot be listed.
type StatusErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RunListResponse wraps run ledger entries.
type RunListResponse struct {
	Runs []runlog.Entry `json:"runs"`
}

// ErrorResponse is the body of non-2xx /api responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromPollerStatus fills the poll counters of a status payload.
func FromPollerStatus(status poller.Status, manifests int) StatusResponse {
	resp := StatusResponse{
		Status:         "ok",
		ManifestsFound: manifests,
		Running:        status.Running,
		LastError:      status.LastError,
	}
	if last := status.LastPoll; last != nil {
		finished := last.FinishedAt
		resp.LastPoll = &finished
		resp.Processed = last.Processed
		resp.Failed = last.Failed
		resp.Skipped = last.Skipped
	}
	return resp
}
