package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/storage"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeIndex struct {
	count   uint64
	scored  []*storage.ScoredChunk
	gotTopK int
}

func (f *fakeIndex) CountChunks(ctx context.Context, namespace string) (uint64, error) {
	return f.count, nil
}

func (f *fakeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*storage.ScoredChunk, error) {
	f.gotTopK = topK
	if topK < len(f.scored) {
		return f.scored[:topK], nil
	}
	return f.scored, nil
}

func scoredChunk(text string, distance float64) *storage.ScoredChunk {
	return &storage.ScoredChunk{
		Chunk:    &storage.Chunk{Text: text},
		Distance: distance,
	}
}

func TestRetrieve_EmptyNamespace(t *testing.T) {
	r := New(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{count: 0}, nil)

	_, err := r.Retrieve(context.Background(), "anything?", 5, "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrEmptyNamespace), "expected ErrEmptyNamespace, got %v", err)
}

func TestRetrieve_ScoreTransform(t *testing.T) {
	index := &fakeIndex{
		count: 10,
		scored: []*storage.ScoredChunk{
			scoredChunk("identical", 0),
			scoredChunk("close", 0.4),
			scoredChunk("unrelated", 1.0),
			scoredChunk("opposite", 2.0),
		},
	}
	r := New(&fakeEmbedder{vector: []float32{1}}, index, nil)

	results, err := r.Retrieve(context.Background(), "question", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.8, results[1].Score, 1e-9)
	assert.InDelta(t, 0.5, results[2].Score, 1e-9)
	assert.InDelta(t, 0.0, results[3].Score, 1e-9)

	// Scores are monotonically non-increasing and bounded.
	for i, res := range results {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, res.Score, results[i-1].Score)
		}
	}
}

func TestRetrieve_ClampsTopK(t *testing.T) {
	index := &fakeIndex{count: 10, scored: []*storage.ScoredChunk{scoredChunk("a", 0.2)}}
	r := New(&fakeEmbedder{vector: []float32{1}}, index, nil)

	_, err := r.Retrieve(context.Background(), "q", 100, "default")
	require.NoError(t, err)
	assert.Equal(t, MaxTopK, index.gotTopK)

	_, err = r.Retrieve(context.Background(), "q", 0, "default")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, index.gotTopK)

	_, err = r.Retrieve(context.Background(), "q", -3, "default")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, index.gotTopK)
}

func TestRetrieve_EmbeddingFailurePropagates(t *testing.T) {
	wantErr := errors.New("backend down")
	r := New(&fakeEmbedder{err: wantErr}, &fakeIndex{count: 5}, nil)

	_, err := r.Retrieve(context.Background(), "q", 5, "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, DefaultTopK, ClampTopK(0))
	assert.Equal(t, DefaultTopK, ClampTopK(-1))
	assert.Equal(t, 1, ClampTopK(1))
	assert.Equal(t, 7, ClampTopK(7))
	assert.Equal(t, MaxTopK, ClampTopK(20))
	assert.Equal(t, MaxTopK, ClampTopK(1000))
}
