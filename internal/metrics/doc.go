// Package metrics owns the Prometheus registry exported at /metrics.
//
// A private registry keeps the exposition limited to proofbuild series; the
// poller, retry notifier and HTTP middleware update it through the small
// method set on Metrics. A nil *Metrics is valid and records nothing.
package metrics
