package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// maxEmbedRunes keeps long vendor replies under the embedding model's input limit.
const maxEmbedRunes = 8000

// Embedder turns reply text into vectors for the reply archive. Dim must match the
// archive collection size; zero leaves the model default.
type Embedder struct {
	client *genai.Client
	model  string
	dim    int32
}

func NewEmbedderFromClient(c *genai.Client, model string, dim int32) *Embedder {
	return &Embedder{client: c, model: model, dim: dim}
}

func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("nothing to embed")
	}
	if r := []rune(text); len(r) > maxEmbedRunes {
		text = string(r[:maxEmbedRunes])
	}

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if e.dim > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dim)
	}
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, errors.New("embedding response was empty")
	}
	return res.Embeddings[0].Values, nil
}
