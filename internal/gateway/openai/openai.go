// Package openai implements the completion gateway on the OpenAI chat API.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/magami/pmai/internal/gateway"
)

// compile-time check that *Client implements gateway.Completer
var _ gateway.Completer = (*Client)(nil)

// Client calls the OpenAI chat-completion endpoint.
type Client struct {
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a Client with the given API key.
func New(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		client: goopenai.NewClient(apiKey),
		logger: logger,
	}
}

// Complete sends the prompt as a single user message and returns the reply.
//
// ERROR CLASSIFICATION:
// 4xx responses (other than 429) mean the request itself is wrong — bad key,
// unknown model — and retrying the same request cannot help, so they map to
// permanent errors. Everything else (429, 5xx, network failures, context
// timeouts) is transient.
func (c *Client) Complete(ctx context.Context, prompt string, opts gateway.Options) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: opts.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		c.logger.Warn("openai completion failed", slog.String("error", err.Error()))

		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) &&
			apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
			apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return "", gateway.Permanent("openai: %v", err)
		}
		return "", gateway.Transient("openai: %v", err)
	}

	if len(resp.Choices) == 0 {
		return "", gateway.Transient("openai: no choices returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
