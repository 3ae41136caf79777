// Package objectstore provides the key-addressed blob store the pipeline runs
// against. Keys are slash-separated (uploads/<id>/manifest.json, state/<id>.json).
//
// Backends: a local filesystem tree for single-host deployments, Google Cloud
// Storage for shared buckets, and an in-memory map for tests and dry runs.
// Every backend supports a conditional create (PutIfAbsent) used by the
// optional processing claim.
package objectstore
