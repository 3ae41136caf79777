package scriptgen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"proofbuild/internal/services"
)

// Normalizer extracts the model text from one provider response shape.
type Normalizer interface {
	Name() string
	Normalize(raw json.RawMessage) (string, bool)
}

// DefaultNormalizers covers every response shape the providers are known to
// return, tried in order.
var DefaultNormalizers = []Normalizer{
	rawText{},
	stringField{field: "response"},
	objectField{field: "response"},
	stringField{field: "text"},
	stringField{field: "description"},
	chatChoices{},
	geminiCandidates{},
}

// NormalizeResponse returns the canonical text of a provider response body.
func NormalizeResponse(raw []byte, normalizers ...Normalizer) (string, error) {
	if len(normalizers) == 0 {
		normalizers = DefaultNormalizers
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", services.Wrap(services.ErrValidation, "", "normalize response", "empty response", nil)
	}
	for _, n := range normalizers {
		if text, ok := n.Normalize(trimmed); ok {
			return text, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "", "normalize response",
		"unrecognized response shape: "+describeShape(trimmed), nil)
}

// rawText accepts a bare JSON string or a body that is not JSON at all.
type rawText struct{}

func (rawText) Name() string { return "raw" }

func (rawText) Normalize(raw json.RawMessage) (string, bool) {
	if !json.Valid(raw) {
		return strings.TrimSpace(string(raw)), true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// stringField accepts {"<field>": "..."}.
type stringField struct{ field string }

func (n stringField) Name() string { return n.field }

func (n stringField) Normalize(raw json.RawMessage) (string, bool) {
	value, ok := objectMember(raw, n.field)
	if !ok {
		return "", false
	}
	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// objectField accepts {"<field>": {...}} where the model output was already
// parsed into an object; the object is returned as JSON text.
type objectField struct{ field string }

func (n objectField) Name() string { return n.field + "-object" }

func (n objectField) Normalize(raw json.RawMessage) (string, bool) {
	value, ok := objectMember(raw, n.field)
	if !ok {
		return "", false
	}
	value = bytes.TrimSpace(value)
	if len(value) == 0 || value[0] != '{' {
		return "", false
	}
	return string(value), true
}

// chatChoices accepts OpenAI-style chat completion responses.
type chatChoices struct{}

func (chatChoices) Name() string { return "chat-completion" }

func (chatChoices) Normalize(raw json.RawMessage) (string, bool) {
	if _, ok := objectMember(raw, "choices"); !ok {
		return "", false
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", false
	}
	content, _ := extractCompletionPayload(completion)
	return content, content != ""
}

// geminiCandidates accepts the REST form of a Gemini response.
type geminiCandidates struct{}

func (geminiCandidates) Name() string { return "gemini-candidates" }

func (geminiCandidates) Normalize(raw json.RawMessage) (string, bool) {
	if _, ok := objectMember(raw, "candidates"); !ok {
		return "", false
	}
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", false
	}
	for _, candidate := range resp.Candidates {
		var parts []string
		for _, part := range candidate.Content.Parts {
			parts = append(parts, part.Text)
		}
		if text := strings.TrimSpace(strings.Join(parts, "")); text != "" {
			return text, true
		}
	}
	return "", false
}

func objectMember(raw json.RawMessage, field string) (json.RawMessage, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	value, ok := obj[field]
	if !ok || string(bytes.TrimSpace(value)) == "null" {
		return nil, false
	}
	return value, true
}

func describeShape(raw json.RawMessage) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("object with keys [%s]", strings.Join(keys, " "))
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return fmt.Sprintf("%T", v)
	}
	return "non-JSON body"
}

// DecodeLLMJSON decodes JSON from model output, handling code fences and
// surrounding prose.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
