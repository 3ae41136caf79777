package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"proofbuild/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	storeRoot  string
}

type providerURLs struct {
	script string
	audio  string
}

func setupCLITestEnv(t *testing.T, providers providerURLs) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("PROOFBUILD_ENV_FILE", "")
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "proofbuild.toml"),
		storeRoot:  filepath.Join(base, "objects"),
	}
	if providers.script == "" {
		providers.script = "https://script.invalid/v1/chat/completions"
	}
	if providers.audio == "" {
		providers.audio = "https://audio.invalid/v1"
	}

	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = ""

[store]
backend = "filesystem"
root = %q

[script]
provider = "openai"
api_key = "test"
base_url = %q

[audio]
api_key = "test"
base_url = %q

[retry]
max_retries = 2
base_delay_ms = 1

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), env.storeRoot, providers.script, providers.audio)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

// fakeProviders serves a chat-completions script endpoint and an ElevenLabs
// style text-to-speech endpoint.
func fakeProviders(t *testing.T) providerURLs {
	t.Helper()
	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"segments":[{"text":"Built the login page.","startTime":0,"duration":4}],"totalDuration":4}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(script.Close)
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-narration"))
	}))
	t.Cleanup(audio.Close)
	return providerURLs{script: script.URL, audio: audio.URL}
}

func writeFrames(t *testing.T, names ...string) string {
	t.Helper()
	return testsupport.WriteArtifacts(t, filepath.Join(t.TempDir(), "frames"), 3, names...)
}
