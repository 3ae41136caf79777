package project

import "testing"

func TestKeyLayout(t *testing.T) {
	id := "p1"
	cases := map[string]string{
		ManifestKey(id): "uploads/p1/manifest.json",
		ArtifactKey(id, ArtifactScreenshot, "001.png"): "uploads/p1/frames/001.png",
		ArtifactKey(id, ArtifactTerminal, "build.txt"): "uploads/p1/terminal/build.txt",
		ArtifactKey(id, ArtifactLog, "server.log"):     "uploads/p1/logs/server.log",
		StateKey(id):  "state/p1.json",
		ScriptKey(id): "scripts/p1.json",
		AudioKey(id):  "audio/p1.m4a",
		ClaimKey(id):  "claims/p1.json",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got key %q, want %q", got, want)
		}
	}
}

func TestIDFromManifestKey(t *testing.T) {
	tests := []struct {
		key  string
		id   string
		want bool
	}{
		{"uploads/p1/manifest.json", "p1", true},
		{"uploads/lx2k1-abc1234/manifest.json", "lx2k1-abc1234", true},
		{"uploads/p1/frames/manifest.json", "", false},
		{"uploads/manifest.json", "", false},
		{"uploads//manifest.json", "", false},
		{"uploads/p1/manifest.json.bak", "", false},
		{"state/p1.json", "", false},
	}
	for _, tc := range tests {
		id, ok := IDFromManifestKey(tc.key)
		if ok != tc.want || id != tc.id {
			t.Fatalf("IDFromManifestKey(%q) = (%q, %v), want (%q, %v)", tc.key, id, ok, tc.id, tc.want)
		}
	}
}

func TestIDFromStateKey(t *testing.T) {
	if id, ok := IDFromStateKey("state/p1.json"); !ok || id != "p1" {
		t.Fatalf("unexpected result %q %v", id, ok)
	}
	for _, key := range []string{"state/.json", "state/a/b.json", "scripts/p1.json", "state/p1.txt"} {
		if _, ok := IDFromStateKey(key); ok {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}
