// Package pipeline defines the ordered stage table that drives project
// orchestration.
//
// A Table is built once at process start (DefaultTable for production) and
// injected into the executor, poller, and state store. It is the only place
// stage ordering lives; callers ask it for the next stage instead of
// hardcoding transitions.
package pipeline
