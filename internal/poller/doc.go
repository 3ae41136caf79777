// Package poller discovers completed uploads and drives them through the
// executor.
//
// A poll lists the uploads prefix, keeps keys of the form
// uploads/<id>/manifest.json, skips projects whose state has already moved
// past ingest, and runs the executor for the rest one at a time. Failures of
// one project are logged, recorded in the run ledger and swallowed so the
// remaining manifests are still processed. Run repeats the poll on a fixed
// interval until its context is cancelled.
package poller
