// Package embedding maps text to fixed-dimension vectors through an
// OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size of DefaultModel. Must match the
	// dimension the vector index was created with.
	DefaultDimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	DefaultBatchSize = 500

	// maxInputChars truncates over-long inputs before sending. Rough
	// estimate of 4 characters per token against an 8192-token model limit,
	// so one oversized chunk cannot fail a whole batch.
	maxInputChars = 8192 * 4
)

// ErrEmbedding indicates the embedding backend failed after the single
// transparent retry allowed for transient errors.
var ErrEmbedding = errors.New("embedding generation failed")

// Embedder generates embeddings in batches with deterministic truncation of
// over-long inputs. Construct once at startup and share across requests.
type Embedder struct {
	client    *Client
	batchSize int
	dimension int
}

// NewEmbedder creates an Embedder with the given client. batchSize <= 0
// selects DefaultBatchSize, dimension <= 0 selects DefaultDimension.
func NewEmbedder(client *Client, batchSize, dimension int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
		dimension: dimension,
	}
}

// Dimension returns the vector size this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// GenerateEmbeddings returns one vector per input text, in input order.
// Transient backend failures (429, 5xx) are retried once; anything else
// fails the call immediately.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = truncate(t, maxInputChars)
	}

	var all [][]float32
	for i := 0; i < len(prepared); i += e.batchSize {
		end := min(i+e.batchSize, len(prepared))

		vectors, err := e.embedBatch(ctx, prepared[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbedding, i, end, err)
		}
		all = append(all, vectors...)
	}

	for i, v := range all {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrEmbedding, i, len(v), e.dimension)
		}
	}

	return all, nil
}

// embedBatch runs one embeddings request, retrying a transient failure once.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.client.model),
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d vectors for %d inputs", len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	// One transparent retry for transient errors, then surface.
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx))
	return vectors, err
}

// isTransient reports whether the error is worth a single retry.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Network-level failures carry no status code.
	return true
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
// Same text always truncates to the same prefix, keeping embeddings
// reproducible.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// toFloat32 converts the API's float64 vectors to the float32 the index
// stores.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
