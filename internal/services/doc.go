// Package services defines shared utilities consumed by the pipeline executor
// and the external generation clients.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (retryable or permanent) and persisted consistently.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
