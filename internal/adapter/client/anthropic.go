package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"procurement-core/internal/domain/entity"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is a fallback generator backed by the Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 2048,
	}
}

func (a *AnthropicClient) Generate(ctx context.Context, prompt string) (*entity.Generation, error) {
	start := time.Now()
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: "Reply with a single JSON object and nothing else."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("anthropic returned no text blocks")
	}

	return &entity.Generation{
		Content:    sb.String(),
		Model:      string(msg.Model),
		TokenCount: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Latency:    time.Since(start).Milliseconds(),
	}, nil
}
