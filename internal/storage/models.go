package storage

import "time"

// Document is the record of one successfully ingested upload. It is stored
// as a vectorless point in the same collection as its chunks and is written
// only after every chunk upsert succeeded.
type Document struct {
	ID         string    // UUID assigned at ingestion
	Filename   string    // Original upload filename
	ChunkCount int       // Number of chunks indexed for this document
	IngestedAt time.Time // When ingestion completed
}

// Chunk is a contiguous span of extracted text with retrieval metadata.
// Chunks are immutable once created; deletion removes them entirely.
type Chunk struct {
	ID         string    // UUID
	DocumentID string    // Owning document
	Filename   string    // Owning document's filename, for citation display
	ChunkIndex int       // Position within the document (0, 1, 2...)
	Page       int       // 1-based page number, 0 when unknown
	Text       string    // Chunk text
	Embedding  []float32 // Vector; not populated on query results
}

// ScoredChunk pairs a retrieved chunk with its cosine distance to the query.
// Distance lies in [0,2], 0 = identical direction. Conversion to a [0,1]
// similarity score is the retriever's job.
type ScoredChunk struct {
	Chunk    *Chunk
	Distance float64
}

// DefaultNamespace is the collection used when a request names none.
const DefaultNamespace = "default"
