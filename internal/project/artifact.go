package project

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArtifactType enumerates the kinds of uploaded build evidence.
type ArtifactType string

const (
	ArtifactScreenshot ArtifactType = "screenshot"
	ArtifactTerminal   ArtifactType = "terminal"
	ArtifactLog        ArtifactType = "log"
)

// Dir returns the upload directory name used for the artifact type.
func (t ArtifactType) Dir() string {
	switch t {
	case ArtifactScreenshot:
		return "frames"
	case ArtifactTerminal:
		return "terminal"
	case ArtifactLog:
		return "logs"
	default:
		return string(t)
	}
}

// Valid reports whether t is a known artifact type.
func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactScreenshot, ArtifactTerminal, ArtifactLog:
		return true
	}
	return false
}

// Artifact is one uploaded file.
type Artifact struct {
	Type       ArtifactType `json:"type"`
	Path       string       `json:"path"`
	Filename   string       `json:"filename"`
	Size       *int64       `json:"size,omitempty"`
	UploadedAt *time.Time   `json:"uploadedAt,omitempty"`
	Order      *int         `json:"order,omitempty"`
}

// ArtifactCollection groups artifacts by type. Screenshots and terminal
// captures are ordered; logs are not.
type ArtifactCollection struct {
	Screenshots []Artifact `json:"screenshots"`
	Terminal    []Artifact `json:"terminal"`
	Logs        []Artifact `json:"logs"`
}

// Count returns the number of artifacts across all groups.
func (c ArtifactCollection) Count() int {
	return len(c.Screenshots) + len(c.Terminal) + len(c.Logs)
}

// TotalSize sums the known artifact sizes.
func (c ArtifactCollection) TotalSize() int64 {
	var total int64
	for _, group := range [][]Artifact{c.Screenshots, c.Terminal, c.Logs} {
		for _, a := range group {
			if a.Size != nil {
				total += *a.Size
			}
		}
	}
	return total
}

// Normalize replaces nil groups with empty slices so the JSON form always
// carries all three arrays.
func (c ArtifactCollection) Normalize() ArtifactCollection {
	if c.Screenshots == nil {
		c.Screenshots = []Artifact{}
	}
	if c.Terminal == nil {
		c.Terminal = []Artifact{}
	}
	if c.Logs == nil {
		c.Logs = []Artifact{}
	}
	return c
}

func (c ArtifactCollection) validate() error {
	groups := []struct {
		name  string
		kind  ArtifactType
		items []Artifact
	}{
		{"screenshots", ArtifactScreenshot, c.Screenshots},
		{"terminal", ArtifactTerminal, c.Terminal},
		{"logs", ArtifactLog, c.Logs},
	}
	for _, g := range groups {
		for i, a := range g.items {
			if !a.Type.Valid() {
				return fmt.Errorf("artifacts.%s[%d]: unknown type %q", g.name, i, a.Type)
			}
			if a.Type != g.kind {
				return fmt.Errorf("artifacts.%s[%d]: type %q does not belong in %s", g.name, i, a.Type, g.name)
			}
			if strings.TrimSpace(a.Filename) == "" {
				return fmt.Errorf("artifacts.%s[%d]: filename is required", g.name, i)
			}
			if a.Size != nil && *a.Size < 0 {
				return fmt.Errorf("artifacts.%s[%d]: size must not be negative", g.name, i)
			}
			if a.Order != nil && *a.Order < 0 {
				return fmt.Errorf("artifacts.%s[%d]: order must not be negative", g.name, i)
			}
		}
	}
	return nil
}

var (
	screenshotExts = map[string]struct{}{"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}, "svg": {}}
	terminalExts   = map[string]struct{}{"txt": {}, "out": {}, "term": {}}
	logExts        = map[string]struct{}{"log": {}, "err": {}}

	orderPattern = regexp.MustCompile(`(?:^|\D)(\d{3,})(?:\.|$)`)
)

// ClassifyArtifact derives the artifact type from the directory the file
// lives in, falling back to its extension. ok is false for unknown files.
func ClassifyArtifact(path, filename string) (ArtifactType, bool) {
	lowerPath := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	switch {
	case strings.Contains(lowerPath, "/frames/"), strings.Contains(lowerPath, "/screenshots/"):
		return ArtifactScreenshot, true
	case strings.Contains(lowerPath, "/terminal/"):
		return ArtifactTerminal, true
	case strings.Contains(lowerPath, "/logs/"):
		return ArtifactLog, true
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := screenshotExts[ext]; ok {
		return ArtifactScreenshot, true
	}
	if _, ok := terminalExts[ext]; ok {
		return ArtifactTerminal, true
	}
	if _, ok := logExts[ext]; ok {
		return ArtifactLog, true
	}
	return "", false
}

// ExtractOrder finds an ordering hint such as "001.png" or "frame-012.png".
func ExtractOrder(filename string) (int, bool) {
	match := orderPattern.FindStringSubmatch(filename)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortArtifacts returns a copy ordered by explicit order first, then filename.
func SortArtifacts(artifacts []Artifact) []Artifact {
	out := make([]Artifact, len(artifacts))
	copy(out, artifacts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Order != nil && b.Order != nil:
			if *a.Order != *b.Order {
				return *a.Order < *b.Order
			}
			return a.Filename < b.Filename
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		default:
			return a.Filename < b.Filename
		}
	})
	return out
}
