package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.opentelemetry.io/otel/codes"

	"github.com/fmuoria/interview-portal/internal/telemetry"
)

var tracer = telemetry.GetTracer("interview-portal/llm")

// Generator produces text completions for a prompt
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Options selects the Vertex AI project and model
type Options struct {
	ProjectID string
	Location  string
	Model     string
}

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewVertexAIClient creates a new Vertex AI client
func NewVertexAIClient(ctx context.Context, opts Options) (*VertexAIClient, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("vertex ai project id is required")
	}
	if opts.Location == "" {
		opts.Location = "us-central1"
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, opts.ProjectID, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)

	// Low temperature keeps scoring and extraction consistent between calls
	model.SetTemperature(0.2)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(2048)

	return &VertexAIClient{
		client:    client,
		model:     model,
		modelName: opts.Model,
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "GenerateContent")
	defer span.End()
	span.SetAttributes(
		telemetry.String("llm.model", v.modelName),
		telemetry.Int("llm.prompt_size", len(prompt)),
	)

	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	return sb.String(), nil
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}

// ExtractJSON returns the outermost JSON object in a model response,
// which may be wrapped in prose or code fences
func ExtractJSON(response string) (string, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("no JSON found in response")
	}

	return response[startIdx : endIdx+1], nil
}
