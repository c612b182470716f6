// Package llm streams chat completions from an OpenAI-compatible backend.
// A local Ollama server works through its /v1 compatibility endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrBackendUnavailable indicates the model backend could not be reached.
// Callers surface a retry-later message; the call is not retried here.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Client is a streaming text-completion backend.
type Client struct {
	client *openai.Client
	model  string
}

// Config configures the completion client.
type Config struct {
	// BaseURL overrides the API endpoint, e.g. "http://localhost:11434/v1"
	// for Ollama. Empty selects api.openai.com.
	BaseURL string
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
	// Model is the chat model identifier.
	Model string
}

// NewClient creates a completion client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("no API key: set OPENAI_API_KEY or configure a local model endpoint")
	}

	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{client: &client, model: model}, nil
}

// Model returns the configured chat model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete streams a completion for the given system and user messages,
// forwarding each token to emit as it arrives. Production stops as soon as
// emit returns an error or ctx is cancelled; the underlying stream is closed
// either way.
func (c *Client) Complete(ctx context.Context, system, user string, emit func(token string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: openai.ChatModel(c.model),
	})
	defer stream.Close()

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if err := emit(token); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Health issues a minimal non-streaming completion to verify the backend is
// reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		Model:               openai.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(1),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
