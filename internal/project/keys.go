package project

import (
	"regexp"
	"strings"
)

const (
	UploadsPrefix = "uploads/"
	StatePrefix   = "state/"
	ScriptsPrefix = "scripts/"
	AudioPrefix   = "audio/"
	ClaimsPrefix  = "claims/"

	manifestName = "manifest.json"
	audioExt     = ".m4a"
)

var manifestKeyPattern = regexp.MustCompile(`^uploads/([^/]+)/manifest\.json$`)

// ManifestKey returns the completion-signal key for a project.
func ManifestKey(id string) string {
	return UploadsPrefix + id + "/" + manifestName
}

// ArtifactKey returns the upload key for an artifact file.
func ArtifactKey(id string, kind ArtifactType, filename string) string {
	return UploadsPrefix + id + "/" + kind.Dir() + "/" + filename
}

// StateKey returns the orchestration state key for a project.
func StateKey(id string) string {
	return StatePrefix + id + ".json"
}

// ScriptKey returns the generated script key for a project.
func ScriptKey(id string) string {
	return ScriptsPrefix + id + ".json"
}

// AudioKey returns the generated audio key for a project. The extension is
// fixed so the playback UI can address it without reading state.
func AudioKey(id string) string {
	return AudioPrefix + id + audioExt
}

// ClaimKey returns the key of the per-project claim record.
func ClaimKey(id string) string {
	return ClaimsPrefix + id + ".json"
}

// IDFromManifestKey extracts the project id from a manifest key. Keys that do
// not match uploads/<id>/manifest.json return false.
func IDFromManifestKey(key string) (string, bool) {
	match := manifestKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// IDFromStateKey extracts the project id from a state key.
func IDFromStateKey(key string) (string, bool) {
	if !strings.HasPrefix(key, StatePrefix) || !strings.HasSuffix(key, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, StatePrefix), ".json")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
