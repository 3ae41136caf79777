// Package statestore reads and writes the per-project records that live in the
// object store: orchestration state, manifests, scripts, audio, and the
// optional processing claims.
//
// State writes always replace the full snapshot at state/<id>.json. The
// accessor never deletes state; error states are cleared only by an operator.
package statestore
