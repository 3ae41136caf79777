// Package runlog keeps a SQLite ledger of executor runs.
//
// Every executor invocation made by the poller or the resume command records
// one row: which stage it started from, where it ended and why. The ledger is
// diagnostic only; the state record in the object store stays authoritative,
// so a missing or reset ledger never changes pipeline behavior.
//
// The database lives at <data_dir>/runs.db, runs in WAL mode, and carries a
// schema_version table checked on open.
package runlog
