package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteArtifacts creates each named file under dir, filled with size bytes
// of a repeating pattern, and returns dir. Names may contain slashes. A size
// <= 0 writes a single byte.
func WriteArtifacts(t testing.TB, dir string, size int64, names ...string) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	body := bytes.Repeat([]byte{0x42}, int(size))
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
