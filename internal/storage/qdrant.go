// Package storage wraps the Qdrant vector index. Each namespace maps to one
// Qdrant collection holding chunk points (with a "content" vector) and
// vectorless document-record points, distinguished by a "type" payload field.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// vectorName is the named vector carrying chunk embeddings. Named vectors
// let document records live in the same collection without one.
const vectorName = "content"

// QdrantStore wraps the Qdrant client with connection management and
// health checks.
type QdrantStore struct {
	client    *qdrant.Client
	host      string
	port      int
	dimension int
}

// NewQdrantStore creates a Qdrant client and fails fast if the server is
// unreachable. dimension is the embedding size collections are created with.
func NewQdrantStore(host string, port, dimension int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:    client,
		host:      host,
		port:      port,
		dimension: dimension,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureNamespace creates the collection backing a namespace if it does not
// exist, with cosine distance and payload indexes. Idempotent.
func (s *QdrantStore) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := s.client.CollectionExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", namespace, err)
	}

	// Indexes for the fields every delete and query filters on.
	for _, field := range []string{"type", "document_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: namespace,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, namespace string, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: namespace,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// UpsertChunks stores chunks with their embeddings, batched in groups of 100.
func (s *QdrantStore) UpsertChunks(ctx context.Context, namespace string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), s.dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(chunk.Embedding...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"type":        "chunk",
					"document_id": chunk.DocumentID,
					"filename":    chunk.Filename,
					"chunk_index": chunk.ChunkIndex,
					"page":        chunk.Page,
					"text":        chunk.Text,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, namespace, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// UpsertDocument stores a document record as a vectorless point. The record
// carries its own id in document_id so a single filter delete cascades over
// record and chunks alike.
func (s *QdrantStore) UpsertDocument(ctx context.Context, namespace string, doc *Document) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"type":        "document",
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"chunk_count": doc.ChunkCount,
			"ingested_at": doc.IngestedAt.Format(time.RFC3339),
		}),
	}

	return s.upsertWithRetry(ctx, namespace, []*qdrant.PointStruct{point})
}

// Query performs vector similarity search over chunk points and returns up
// to topK results ordered by ascending cosine distance.
func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: namespace,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		chunk := &Chunk{
			ID:         result.Id.GetUuid(),
			DocumentID: payload["document_id"].GetStringValue(),
			Filename:   payload["filename"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
			Page:       int(payload["page"].GetIntegerValue()),
			Text:       payload["text"].GetStringValue(),
		}
		scored = append(scored, &ScoredChunk{
			Chunk: chunk,
			// Qdrant reports cosine similarity (higher is better); the rest
			// of the system speaks cosine distance in [0,2].
			Distance: 1 - float64(result.Score),
		})
	}

	return scored, nil
}

// CountChunks returns the number of chunk points in a namespace. A missing
// collection counts as zero.
func (s *QdrantStore) CountChunks(ctx context.Context, namespace string) (uint64, error) {
	exists, err := s.client.CollectionExists(ctx, namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: namespace,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// DeleteDocument removes the document record and every chunk carrying its
// id. The filter matches both because the record stores its own document_id.
func (s *QdrantStore) DeleteDocument(ctx context.Context, namespace, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: namespace,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// GetDocument retrieves a document record by id.
func (s *QdrantStore) GetDocument(ctx context.Context, namespace, id string) (*Document, error) {
	results, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: namespace,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrDocumentNotFound
	}

	payload := results[0].Payload
	if payload["type"].GetStringValue() != "document" {
		return nil, ErrDocumentNotFound
	}

	return documentFromPayload(id, payload), nil
}

// ListDocuments returns every document record in a namespace, scrolling in
// pages of 100. A missing collection yields an empty list.
func (s *QdrantStore) ListDocuments(ctx context.Context, namespace string) ([]*Document, error) {
	exists, err := s.client.CollectionExists(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return []*Document{}, nil
	}

	var docs []*Document
	var offset *qdrant.PointId
	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: namespace,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("type", "document")},
			},
			Limit:       qdrant.PtrOf(batchSize),
			Offset:      offset,
			WithPayload: qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll documents: %w", err)
		}

		for _, result := range results {
			docs = append(docs, documentFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return docs, nil
}

func documentFromPayload(id string, payload map[string]*qdrant.Value) *Document {
	ingestedAt, err := time.Parse(time.RFC3339, payload["ingested_at"].GetStringValue())
	if err != nil {
		ingestedAt = time.Time{}
	}
	return &Document{
		ID:         id,
		Filename:   payload["filename"].GetStringValue(),
		ChunkCount: int(payload["chunk_count"].GetIntegerValue()),
		IngestedAt: ingestedAt,
	}
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
