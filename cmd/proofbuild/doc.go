// Package main hosts the proofbuild CLI entrypoint and command graph.
//
// The Cobra command tree covers the long-running daemon (`run`), one-shot
// operator actions against the object store (`poll`, `resume`, `manifest`),
// read-only inspection of project state and the run ledger (`status`,
// `history`), and configuration scaffolding. Configuration resolution and
// runtime wiring live in commandContext so subcommands stay declarative;
// the pipeline itself lives in the internal packages.
package main
