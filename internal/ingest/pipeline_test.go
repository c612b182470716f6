package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/storage"
)

type fakeExtractor struct {
	pages []extract.Page
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) ([]extract.Page, error) {
	f.calls++
	return f.pages, f.err
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeIndex struct {
	chunks       []*storage.Chunk
	doc          *storage.Document
	deleted      []string
	chunksErr    error
	docErr       error
	upsertCalls  int
	ensuredNames []string
}

func (f *fakeIndex) EnsureNamespace(ctx context.Context, ns string) error {
	f.ensuredNames = append(f.ensuredNames, ns)
	return nil
}

func (f *fakeIndex) UpsertChunks(ctx context.Context, ns string, chunks []*storage.Chunk) error {
	f.upsertCalls++
	if f.chunksErr != nil {
		return f.chunksErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndex) UpsertDocument(ctx context.Context, ns string, doc *storage.Document) error {
	if f.docErr != nil {
		return f.docErr
	}
	f.doc = doc
	return nil
}

func (f *fakeIndex) DeleteDocument(ctx context.Context, ns, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func newTestPipeline(t *testing.T, ex *fakeExtractor, em *fakeEmbedder, ix *fakeIndex) *Pipeline {
	t.Helper()
	c, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	require.NoError(t, err)
	return NewPipeline(ex, c, em, ix, nil)
}

func TestIngest_RejectsNonPDFBeforeAnyWork(t *testing.T) {
	ex := &fakeExtractor{}
	em := &fakeEmbedder{}
	ix := &fakeIndex{}
	p := newTestPipeline(t, ex, em, ix)

	_, err := p.Ingest(context.Background(), []byte("data"), "notes.txt", "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrUnsupportedFormat))

	// Rejected before extraction, embedding, or any index write.
	assert.Zero(t, ex.calls)
	assert.Zero(t, em.calls)
	assert.Zero(t, ix.upsertCalls)
	assert.Nil(t, ix.doc)
}

func TestIngest_Success(t *testing.T) {
	ex := &fakeExtractor{pages: []extract.Page{
		{Number: 1, Text: "The refund policy allows returns within 30 days."},
		{Number: 2, Text: "Shipping is free for orders over fifty dollars."},
	}}
	em := &fakeEmbedder{}
	ix := &fakeIndex{}
	p := newTestPipeline(t, ex, em, ix)

	doc, err := p.Ingest(context.Background(), []byte("%PDF-"), "policy.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "policy.pdf", doc.Filename)
	assert.Equal(t, len(ix.chunks), doc.ChunkCount)
	assert.False(t, doc.IngestedAt.IsZero())
	assert.Equal(t, []string{storage.DefaultNamespace}, ix.ensuredNames)

	require.NotEmpty(t, ix.chunks)
	for i, chunk := range ix.chunks {
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, "policy.pdf", chunk.Filename)
		assert.NotZero(t, chunk.Page)
		assert.NotEmpty(t, chunk.Embedding)
		assert.NotEmpty(t, chunk.ID)
	}

	// Document record written after chunks, with a matching count.
	require.NotNil(t, ix.doc)
	assert.Equal(t, doc.ID, ix.doc.ID)
	assert.Empty(t, ix.deleted, "no rollback on success")
}

func TestIngest_EmptyDocumentIsNotAnError(t *testing.T) {
	ex := &fakeExtractor{pages: nil}
	em := &fakeEmbedder{}
	ix := &fakeIndex{}
	p := newTestPipeline(t, ex, em, ix)

	doc, err := p.Ingest(context.Background(), []byte("%PDF-"), "blank.pdf", "default")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Zero(t, em.calls, "nothing to embed")
	assert.Zero(t, ix.upsertCalls, "no chunk upsert for an empty document")
	require.NotNil(t, ix.doc, "record still created so the document is listable")
}

func TestIngest_ExtractionFailureAborts(t *testing.T) {
	ex := &fakeExtractor{err: extract.ErrExtraction}
	em := &fakeEmbedder{}
	ix := &fakeIndex{}
	p := newTestPipeline(t, ex, em, ix)

	_, err := p.Ingest(context.Background(), []byte("%PDF-"), "broken.pdf", "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrExtraction))
	assert.Zero(t, em.calls)
	assert.Nil(t, ix.doc)
}

func TestIngest_EmbeddingFailureLeavesNoWrites(t *testing.T) {
	ex := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "some text"}}}
	em := &fakeEmbedder{err: embedding.ErrEmbedding}
	ix := &fakeIndex{}
	p := newTestPipeline(t, ex, em, ix)

	_, err := p.Ingest(context.Background(), []byte("%PDF-"), "doc.pdf", "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedding.ErrEmbedding))
	assert.Zero(t, ix.upsertCalls)
	assert.Nil(t, ix.doc)
}

func TestIngest_ChunkUpsertFailureRollsBack(t *testing.T) {
	ex := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "some text"}}}
	em := &fakeEmbedder{}
	ix := &fakeIndex{chunksErr: errors.New("qdrant write failed")}
	p := newTestPipeline(t, ex, em, ix)

	_, err := p.Ingest(context.Background(), []byte("%PDF-"), "doc.pdf", "default")
	require.Error(t, err)

	require.Len(t, ix.deleted, 1, "partial writes must be rolled back synchronously")
	assert.Nil(t, ix.doc, "document record must never appear for a failed ingestion")
}

func TestIngest_RecordUpsertFailureRollsBack(t *testing.T) {
	ex := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "some text"}}}
	em := &fakeEmbedder{}
	ix := &fakeIndex{docErr: errors.New("qdrant write failed")}
	p := newTestPipeline(t, ex, em, ix)

	_, err := p.Ingest(context.Background(), []byte("%PDF-"), "doc.pdf", "default")
	require.Error(t, err)
	require.Len(t, ix.deleted, 1)
}

func TestDelete(t *testing.T) {
	ix := &fakeIndex{}
	p := NewPipeline(&fakeExtractor{}, mustChunker(t), &fakeEmbedder{}, ix, nil)

	require.NoError(t, p.Delete(context.Background(), "", "doc-123"))
	assert.Equal(t, []string{"doc-123"}, ix.deleted)
}

func mustChunker(t *testing.T) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	require.NoError(t, err)
	return c
}
