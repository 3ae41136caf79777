// Package api serves the HTTP surface of the daemon: health and status
// probes, Prometheus metrics, and a read-only view of project records.
//
// # Routes
//
//	GET /health                      service identity and poll cadence
//	GET /status                      live manifest count plus last poll counters
//	GET /metrics                     Prometheus exposition
//	GET /api/projects/{id}/state     persisted state, or a synthesized ingest record
//	GET /api/projects/{id}/manifest  the completion manifest
//	GET /api/runs?limit=&project=    run ledger entries, newest first
//
// Routes under /api require a bearer token when one is configured. Nothing
// here writes to the object store; reading a project that has no state
// returns the record GetOrCreate would create without persisting it.
//
// DTOs use camelCase JSON tags. Domain records (State, Manifest, run
// entries) are returned as-is since their JSON form is already the wire
// format.
package api
