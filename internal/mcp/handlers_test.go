package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

type fakeSearcher struct {
	results []retriever.Result
	err     error
	gotTopK int
}

func (f *fakeSearcher) Retrieve(ctx context.Context, question string, topK int, namespace string) ([]retriever.Result, error) {
	f.gotTopK = topK
	return f.results, f.err
}

type fakeAnswerer struct {
	answer string
	err    error
}

func (f *fakeAnswerer) Answer(ctx context.Context, question string, results []retriever.Result) (string, error) {
	return f.answer, f.err
}

type fakeCatalog struct {
	docs   []*storage.Document
	chunks uint64
	err    error
}

func (f *fakeCatalog) ListDocuments(ctx context.Context, namespace string) ([]*storage.Document, error) {
	return f.docs, f.err
}

func (f *fakeCatalog) CountChunks(ctx context.Context, namespace string) (uint64, error) {
	return f.chunks, f.err
}

func (f *fakeCatalog) Health(ctx context.Context) error { return nil }

func scored(score float64, text string) retriever.Result {
	return retriever.Result{
		Chunk: &storage.Chunk{DocumentID: "doc-1", Filename: "a.pdf", Text: text},
		Score: score,
	}
}

func TestSearchHandler_FiltersByMinScore(t *testing.T) {
	se := &fakeSearcher{results: []retriever.Result{
		scored(0.9, "high"),
		scored(0.3, "low"),
	}}
	handler := makeSearchHandler(se)

	_, out, err := handler(context.Background(), nil, SearchDocsInput{Query: "q", MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "high", out.Results[0].Text)
}

func TestSearchHandler_EmptyIndexIsAMessageNotAnError(t *testing.T) {
	se := &fakeSearcher{err: fmt.Errorf("namespace default: %w", storage.ErrEmptyNamespace)}
	handler := makeSearchHandler(se)

	_, out, err := handler(context.Background(), nil, SearchDocsInput{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Contains(t, out.Message, "indexed")
}

func TestSearchHandler_DefaultsTopK(t *testing.T) {
	se := &fakeSearcher{}
	handler := makeSearchHandler(se)

	_, out, err := handler(context.Background(), nil, SearchDocsInput{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, retriever.DefaultTopK, se.gotTopK)
	assert.Contains(t, out.Message, "No matching passages")
}

func TestAskHandler_ReturnsAnswerWithSources(t *testing.T) {
	se := &fakeSearcher{results: []retriever.Result{scored(0.8, "Returns within 30 days.")}}
	an := &fakeAnswerer{answer: "The refund window is 30 days."}
	handler := makeAskHandler(se, an)

	_, out, err := handler(context.Background(), nil, AskDocsInput{Question: "refund window?"})
	require.NoError(t, err)
	assert.Equal(t, "The refund window is 30 days.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "a.pdf", out.Sources[0].Filename)
}

func TestAskHandler_GenerationFailure(t *testing.T) {
	se := &fakeSearcher{results: []retriever.Result{scored(0.8, "ctx")}}
	an := &fakeAnswerer{err: errors.New("backend down")}
	handler := makeAskHandler(se, an)

	_, _, err := handler(context.Background(), nil, AskDocsInput{Question: "q"})
	require.Error(t, err)
}

func TestListHandler(t *testing.T) {
	cat := &fakeCatalog{docs: []*storage.Document{
		{ID: "a", Filename: "a.pdf", ChunkCount: 4},
	}}
	handler := makeListHandler(cat)

	_, out, err := handler(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "a.pdf", out.Documents[0].Filename)
}

func TestStatusHandler(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	cat := &fakeCatalog{
		docs: []*storage.Document{
			{ID: "a", IngestedAt: older},
			{ID: "b", IngestedAt: newer},
		},
		chunks: 42,
	}
	handler := makeStatusHandler(cat)

	_, out, err := handler(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultNamespace, out.Namespace)
	assert.Equal(t, 2, out.TotalDocuments)
	assert.Equal(t, uint64(42), out.TotalChunks)
	assert.Equal(t, newer, out.LastIngestedAt)
}
