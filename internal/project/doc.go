// Package project holds the persisted data model of a narration project:
// identifiers, the upload manifest, generated scripts, and the orchestration
// state record, together with the object-store key layout they live under.
//
// All JSON shapes use camelCase field names and RFC 3339 timestamps so the
// records stay readable by the playback UI and the upload tooling.
package project
