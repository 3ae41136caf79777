// Package daemon coordinates the long-running proofbuild process.
//
// It runs the discovery poll loop and the HTTP surface under one errgroup
// with flock-based locking to prevent two daemons sharing a data directory.
// Either half failing cancels the other; cancelling the parent context stops
// both and releases the lock.
//
// Keep orchestration logic here: pipeline work lives in executor and poller
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
