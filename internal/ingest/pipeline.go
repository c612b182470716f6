// Package ingest drives the document write path: extract, chunk, embed,
// index. Ingestion is atomic at document granularity; a failure after any
// index write rolls the document back before the error is returned.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/storage"
)

// Extractor produces page-level text from raw document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]extract.Page, error)
}

// Chunker splits page text into ordered passages.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder turns chunk texts into vectors, one per input, in input order.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the write side of the vector index.
type Index interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	UpsertChunks(ctx context.Context, namespace string, chunks []*storage.Chunk) error
	UpsertDocument(ctx context.Context, namespace string, doc *storage.Document) error
	DeleteDocument(ctx context.Context, namespace, documentID string) error
}

// Pipeline orchestrates ingestion for one uploaded document at a time.
// Instances are safe for concurrent use; all state lives in the index.
type Pipeline struct {
	extractor Extractor
	chunker   Chunker
	embedder  Embedder
	index     Index
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(extractor Extractor, chunker Chunker, embedder Embedder, index Index, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
}

// Ingest runs the full pipeline on an uploaded PDF and returns the document
// record. The record is written only after every chunk landed in the index,
// so a visible document always has its full chunk set.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename, namespace string) (*storage.Document, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %q is not a PDF", extract.ErrUnsupportedFormat, filename)
	}
	if namespace == "" {
		namespace = storage.DefaultNamespace
	}

	if err := p.index.EnsureNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("ensure namespace: %w", err)
	}

	pages, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	docID := uuid.New().String()
	chunks := p.buildChunks(docID, filename, pages)
	p.logger.Info("Chunked document",
		"document_id", docID,
		"filename", filename,
		"pages", len(pages),
		"chunks", len(chunks),
	)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			// Nothing written yet, nothing to roll back.
			return nil, err
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}

		if err := p.index.UpsertChunks(ctx, namespace, chunks); err != nil {
			p.rollback(ctx, namespace, docID)
			return nil, fmt.Errorf("store chunks: %w", err)
		}
	}

	doc := &storage.Document{
		ID:         docID,
		Filename:   filename,
		ChunkCount: len(chunks),
		IngestedAt: time.Now().UTC(),
	}
	if err := p.index.UpsertDocument(ctx, namespace, doc); err != nil {
		p.rollback(ctx, namespace, docID)
		return nil, fmt.Errorf("store document record: %w", err)
	}

	p.logger.Info("Ingestion complete",
		"document_id", docID,
		"filename", filename,
		"chunks", len(chunks),
		"namespace", namespace,
	)
	return doc, nil
}

// buildChunks splits every page and attaches retrieval metadata. Chunk
// indexes run across the whole document, page numbers are per chunk.
func (p *Pipeline) buildChunks(docID, filename string, pages []extract.Page) []*storage.Chunk {
	var chunks []*storage.Chunk
	index := 0
	for _, page := range pages {
		for _, text := range p.chunker.Chunk(page.Text) {
			chunks = append(chunks, &storage.Chunk{
				ID:         uuid.New().String(),
				DocumentID: docID,
				Filename:   filename,
				ChunkIndex: index,
				Page:       page.Number,
				Text:       text,
			})
			index++
		}
	}
	return chunks
}

// rollback synchronously removes everything written for a failed ingestion
// attempt. It must run even when the request context is already cancelled.
func (p *Pipeline) rollback(ctx context.Context, namespace, docID string) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := p.index.DeleteDocument(cleanupCtx, namespace, docID); err != nil {
		p.logger.Error("Rollback of partial ingestion failed",
			"document_id", docID,
			"namespace", namespace,
			"error", err,
		)
		return
	}
	p.logger.Warn("Rolled back partial ingestion", "document_id", docID, "namespace", namespace)
}

// Delete removes a document record and all of its chunks from a namespace.
func (p *Pipeline) Delete(ctx context.Context, namespace, documentID string) error {
	if namespace == "" {
		namespace = storage.DefaultNamespace
	}
	if err := p.index.DeleteDocument(ctx, namespace, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	p.logger.Info("Deleted document", "document_id", documentID, "namespace", namespace)
	return nil
}
