// Package retriever embeds a question, searches the vector index and returns
// ranked chunks with normalized similarity scores.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/docqa/internal/storage"
)

const (
	// MinTopK and MaxTopK bound how many chunks a query may request.
	// Out-of-range values are clamped, not rejected.
	MinTopK = 1
	MaxTopK = 20

	// DefaultTopK is used when a request names no value.
	DefaultTopK = 5
)

// Embedder turns texts into vectors. Question embeddings must come from the
// same model as chunk embeddings to be comparable.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the read side of the vector index.
type Index interface {
	CountChunks(ctx context.Context, namespace string) (uint64, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*storage.ScoredChunk, error)
}

// Result pairs a retrieved chunk with its similarity score in [0,1],
// 1 = identical meaning. Results are ephemeral, constructed per query.
type Result struct {
	Chunk *storage.Chunk
	Score float64
}

// Retriever answers "which chunks are closest to this question".
type Retriever struct {
	embedder Embedder
	index    Index
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder Embedder, index Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Retrieve returns up to topK chunks ranked by descending similarity.
// Querying a namespace with zero indexed chunks returns
// storage.ErrEmptyNamespace so callers can tell "no documents yet" apart
// from "no relevant passages".
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, namespace string) ([]Result, error) {
	topK = ClampTopK(topK)
	if namespace == "" {
		namespace = storage.DefaultNamespace
	}

	count, err := r.index.CountChunks(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: namespace %q", storage.ErrEmptyNamespace, namespace)
	}

	vectors, err := r.embedder.GenerateEmbeddings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	scored, err := r.index.Query(ctx, namespace, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	// Cosine distance d in [0,2] maps to similarity s = 1 - d/2 in [0,1].
	// The transform is monotonic, so the index's ascending-distance order is
	// already descending-similarity order.
	results := make([]Result, len(scored))
	for i, sc := range scored {
		results[i] = Result{
			Chunk: sc.Chunk,
			Score: clamp01(1 - sc.Distance/2),
		}
	}

	r.logger.Debug("Retrieved chunks",
		"namespace", namespace,
		"requested", topK,
		"returned", len(results),
	)

	return results, nil
}

// ClampTopK forces topK into [MinTopK, MaxTopK], mapping zero and negative
// values to the default.
func ClampTopK(topK int) int {
	switch {
	case topK <= 0:
		return DefaultTopK
	case topK < MinTopK:
		return MinTopK
	case topK > MaxTopK:
		return MaxTopK
	}
	return topK
}

// clamp01 guards against floating point slop outside [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
