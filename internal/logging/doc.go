// Package logging assembles structured slog loggers and formatting helpers used
// across proofbuild services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so executor and poller code can
// tag log lines with project ids, stages, and correlation ids. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
