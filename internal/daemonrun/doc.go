// Package daemonrun wires configuration into running components: logger,
// object store, state accessor, generators with their retry policy, run
// ledger, metrics, executor and poller. The daemon and the one-shot CLI
// commands share the same Runtime so both exercise identical wiring.
package daemonrun
