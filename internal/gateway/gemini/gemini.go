// Package gemini implements the completion gateway on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/magami/pmai/internal/gateway"
)

// compile-time check that *Client implements gateway.Completer
var _ gateway.Completer = (*Client)(nil)

// Client calls the Gemini generate-content endpoint.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

// New creates a Client with the given API key.
func New(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &Client{client: client, logger: logger}, nil
}

// Complete sends the prompt and returns the generated text.
//
// Unlike the OpenAI client, the genai library does not expose a structured
// error with a status code we can branch on cleanly, so every failure is
// classified as transient — the caller's fallback path handles it either way.
func (c *Client) Complete(ctx context.Context, prompt string, opts gateway.Options) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx,
		opts.Model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(opts.Temperature),
			MaxOutputTokens: int32(opts.MaxTokens),
		},
	)
	if err != nil {
		c.logger.Warn("gemini completion failed", slog.String("error", err.Error()))
		return "", gateway.Transient("gemini: %v", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", gateway.Transient("gemini: empty response")
	}

	return text, nil
}
