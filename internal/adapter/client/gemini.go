package client

import (
	"context"
	"errors"
	"time"

	"procurement-core/internal/domain/entity"

	"google.golang.org/genai"
)

// GeminiConfig selects the backend: an API key means the Gemini Developer API,
// otherwise Vertex AI with project and location.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	BaseURL  string
}

func NewGenAIClient(ctx context.Context, cfg GeminiConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	return genai.NewClient(ctx, cc)
}

type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiClientFromClient(c *genai.Client, model string) *GeminiClient {
	return &GeminiClient{
		client:      c,
		model:       model,
		temperature: 0.2,
	}
}

// Generate asks for a JSON response; every prompt this service sends expects one.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (*entity.Generation, error) {
	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(g.temperature),
	})
	if err != nil {
		return nil, err
	}

	text := result.Text()
	if text == "" {
		return nil, errors.New("gemini returned no text candidates")
	}

	gen := &entity.Generation{
		Content: text,
		Model:   g.model,
		Latency: time.Since(start).Milliseconds(),
	}
	if result.UsageMetadata != nil {
		gen.TokenCount = int(result.UsageMetadata.TotalTokenCount)
	}
	return gen, nil
}
