package testsupport

import (
	"context"
	"sync"
	"time"

	"proofbuild/internal/audiogen"
	"proofbuild/internal/project"
	"proofbuild/internal/scriptgen"
)

// NarrationScript returns a valid script with one segment per text.
func NarrationScript(projectID string, texts ...string) project.Script {
	segments := make([]project.Segment, 0, len(texts))
	var start float64
	for _, text := range texts {
		segments = append(segments, project.Segment{Text: text, StartTime: start, Duration: 4})
		start += 4
	}
	return project.Script{
		ProjectID:     projectID,
		Version:       project.SchemaVersion,
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Segments:      segments,
		TotalDuration: start,
		Metadata:      &project.ScriptMetadata{Tone: scriptgen.DefaultTone, Language: scriptgen.DefaultLanguage},
	}
}

// FakeScripts is a scriptgen.Generator returning canned results.
type FakeScripts struct {
	mu sync.Mutex
	// Texts are the segment texts of generated scripts.
	Texts []string
	// Err, when set, is returned instead of a script.
	Err   error
	calls []string
}

// Generate implements scriptgen.Generator.
func (f *FakeScripts) Generate(_ context.Context, projectID string, _ project.ArtifactCollection, _ scriptgen.Options) (project.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, projectID)
	if f.Err != nil {
		return project.Script{}, f.Err
	}
	texts := f.Texts
	if len(texts) == 0 {
		texts = []string{"We built a thing.", "It works."}
	}
	return NarrationScript(projectID, texts...), nil
}

// Calls returns the project ids Generate was invoked with.
func (f *FakeScripts) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FakeAudio is an audiogen.Generator returning canned results. Errs are
// returned by successive calls before falling back to the success result.
type FakeAudio struct {
	mu          sync.Mutex
	Errs        []error
	Data        []byte
	ContentType string
	texts       []string
}

// Synthesize implements audiogen.Generator.
func (f *FakeAudio) Synthesize(_ context.Context, text string, _ audiogen.Options) (audiogen.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.texts)
	f.texts = append(f.texts, text)
	if call < len(f.Errs) && f.Errs[call] != nil {
		return audiogen.Result{}, f.Errs[call]
	}
	data := f.Data
	if data == nil {
		data = []byte("ID3fake-mp3")
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = audiogen.DefaultContentType
	}
	return audiogen.Result{Data: data, ContentType: contentType}, nil
}

// Texts returns the narration texts Synthesize was invoked with.
func (f *FakeAudio) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// FailingAudio always fails with err.
func FailingAudio(err error) *FakeAudio {
	return &FakeAudio{Errs: []error{err, err, err, err, err, err, err, err}}
}
