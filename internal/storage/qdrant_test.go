//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// setupTestStore creates a store against a local Qdrant and a fresh
// throwaway namespace. Skips when Qdrant is not running.
func setupTestStore(t *testing.T) (*QdrantStore, string) {
	store, err := NewQdrantStore("localhost", 6334, testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	namespace := "test-" + uuid.New().String()
	require.NoError(t, store.EnsureNamespace(context.Background(), namespace))

	t.Cleanup(func() { store.Close() })
	return store, namespace
}

func testVector(fill float32) []float32 {
	v := make([]float32, testDimension)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestDocumentRoundTrip(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	doc := &Document{
		ID:         uuid.New().String(),
		Filename:   "policy.pdf",
		ChunkCount: 3,
		IngestedAt: now,
	}

	require.NoError(t, store.UpsertDocument(ctx, ns, doc))

	retrieved, err := store.GetDocument(ctx, ns, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, doc.Filename, retrieved.Filename)
	assert.Equal(t, doc.ChunkCount, retrieved.ChunkCount)
	assert.WithinDuration(t, doc.IngestedAt, retrieved.IngestedAt, time.Second)
}

func TestChunkQueryRoundTrip(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	docID := uuid.New().String()
	chunk := &Chunk{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Filename:   "policy.pdf",
		ChunkIndex: 0,
		Page:       2,
		Text:       "The refund policy allows returns within 30 days.",
		Embedding:  testVector(0.1),
	}

	require.NoError(t, store.UpsertChunks(ctx, ns, []*Chunk{chunk}))

	results, err := store.Query(ctx, ns, testVector(0.1), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, chunk.ID, got.Chunk.ID)
	assert.Equal(t, docID, got.Chunk.DocumentID)
	assert.Equal(t, 2, got.Chunk.Page)
	assert.Equal(t, chunk.Text, got.Chunk.Text)
	// Identical vectors: cosine distance effectively zero.
	assert.InDelta(t, 0.0, got.Distance, 0.001)
}

func TestQueryOrderedByDistance(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	docID := uuid.New().String()
	near := &Chunk{
		ID: uuid.New().String(), DocumentID: docID, ChunkIndex: 0,
		Text: "near", Embedding: testVector(0.5),
	}
	far := &Chunk{
		ID: uuid.New().String(), DocumentID: docID, ChunkIndex: 1,
		Text: "far", Embedding: append([]float32{-0.5}, testVector(0.5)[1:]...),
	}
	require.NoError(t, store.UpsertChunks(ctx, ns, []*Chunk{far, near}))

	results, err := store.Query(ctx, ns, testVector(0.5), 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Chunk.Text)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestDeleteDocumentCascades(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	keepID := uuid.New().String()
	dropID := uuid.New().String()

	var chunks []*Chunk
	for i := 0; i < 3; i++ {
		chunks = append(chunks, &Chunk{
			ID: uuid.New().String(), DocumentID: dropID, ChunkIndex: i,
			Text: "doomed", Embedding: testVector(0.2),
		})
	}
	chunks = append(chunks, &Chunk{
		ID: uuid.New().String(), DocumentID: keepID, ChunkIndex: 0,
		Text: "survivor", Embedding: testVector(0.2),
	})
	require.NoError(t, store.UpsertChunks(ctx, ns, chunks))
	require.NoError(t, store.UpsertDocument(ctx, ns, &Document{
		ID: dropID, Filename: "drop.pdf", ChunkCount: 3, IngestedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.DeleteDocument(ctx, ns, dropID))

	// Every chunk of the deleted document is gone, the record too.
	results, err := store.Query(ctx, ns, testVector(0.2), 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, dropID, r.Chunk.DocumentID)
	}
	_, err = store.GetDocument(ctx, ns, dropID)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))

	count, err := store.CountChunks(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestCountChunks_MissingNamespace(t *testing.T) {
	store, _ := setupTestStore(t)

	count, err := store.CountChunks(context.Background(), "never-created-"+uuid.New().String())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestDimensionValidation(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	bad := &Chunk{
		ID: uuid.New().String(), DocumentID: uuid.New().String(),
		Text: "wrong size", Embedding: make([]float32, testDimension+1),
	}
	err := store.UpsertChunks(ctx, ns, []*Chunk{bad})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = store.Query(ctx, ns, make([]float32, testDimension-1), 5)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestListDocuments(t *testing.T) {
	store, ns := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertDocument(ctx, ns, &Document{
			ID:         uuid.New().String(),
			Filename:   "file.pdf",
			ChunkCount: i,
			IngestedAt: time.Now().UTC(),
		}))
	}

	docs, err := store.ListDocuments(ctx, ns)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	empty, err := store.ListDocuments(ctx, "never-created-"+uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
