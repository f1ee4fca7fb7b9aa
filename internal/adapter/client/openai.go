package client

import (
	"context"
	"errors"
	"time"

	"procurement-core/internal/domain/entity"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient is a fallback generator for when Gemini is unavailable.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (*entity.Generation, error) {
	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Reply with a single JSON object and nothing else."),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return &entity.Generation{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokenCount: int(resp.Usage.TotalTokens),
		Latency:    time.Since(start).Milliseconds(),
	}, nil
}
