package scriptgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"proofbuild/internal/project"
	"proofbuild/internal/services"
)

const (
	defaultVertexModel  = "gemini-2.5-flash"
	defaultVertexRegion = "us-central1"
)

// VertexConfig captures the Vertex AI settings.
type VertexConfig struct {
	ProjectID string
	Region    string
	Model     string
	MaxTokens int
}

// contentGenerator is the part of *genai.GenerativeModel the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexClient generates scripts with Gemini on Vertex AI.
type VertexClient struct {
	base
	model  contentGenerator
	client *genai.Client
}

// NewVertexClient dials Vertex AI using application default credentials.
func NewVertexClient(ctx context.Context, cfg VertexConfig, opts ...Option) (*VertexClient, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultVertexRegion
	}
	if projectID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "vertex client", "gcp project required", nil)
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultVertexModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTok
	}
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  genai.Ptr(int32(maxTokens)),
	}
	v := newVertexWithModel(model, opts...)
	v.client = client
	return v, nil
}

func newVertexWithModel(model contentGenerator, opts ...Option) *VertexClient {
	return &VertexClient{base: newBase(0, opts), model: model}
}

// Close releases the underlying gRPC connection.
func (c *VertexClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate implements Generator.
func (c *VertexClient) Generate(ctx context.Context, projectID string, artifacts project.ArtifactCollection, opts Options) (project.Script, error) {
	return c.generate(ctx, "vertex", c.complete, projectID, artifacts, opts)
}

// complete ignores system; it is set once as the model's system instruction.
func (c *VertexClient) complete(ctx context.Context, _, user string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", vertexError(err)
	}
	text := candidateText(resp)
	if text == "" {
		return "", services.Wrap(services.ErrTransient, "", "vertex request", "empty candidate", nil)
	}
	return text, nil
}

// candidateText joins the text parts of the first candidate that has any.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text
		}
	}
	return ""
}

var grpcHTTPStatus = map[codes.Code]int{
	codes.InvalidArgument:   400,
	codes.Unauthenticated:   401,
	codes.PermissionDenied:  403,
	codes.NotFound:          404,
	codes.DeadlineExceeded:  504,
	codes.ResourceExhausted: 429,
	codes.Internal:          500,
	codes.Unavailable:       503,
}

// vertexError maps gRPC status codes onto HTTP statuses for retry
// classification.
func vertexError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("vertex request: %w", err)
	}
	if code, known := grpcHTTPStatus[st.Code()]; known {
		return &StatusError{Provider: "vertex", StatusCode: code, Body: st.Message()}
	}
	return fmt.Errorf("vertex request: %w", err)
}
