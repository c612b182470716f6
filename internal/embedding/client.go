package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps an OpenAI-compatible embeddings endpoint. Pointing BaseURL at
// a local server (Ollama, LocalAI) works as long as it speaks the
// /v1/embeddings protocol.
type Client struct {
	client *openai.Client
	model  string
}

// Config configures the embeddings client.
type Config struct {
	// BaseURL overrides the API endpoint. Empty selects api.openai.com.
	BaseURL string
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
	// Model is the embedding model identifier.
	Model string
}

// NewClient creates an embeddings client. An API key must be supplied via
// Config or OPENAI_API_KEY unless a BaseURL to a keyless local server is set.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("no API key: set OPENAI_API_KEY or configure a local embedding endpoint")
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

// Model returns the configured embedding model identifier. Chunk and question
// embeddings must both come from it to stay comparable.
func (c *Client) Model() string {
	return c.model
}
