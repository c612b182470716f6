// Package mcp exposes the document question-answering pipeline as Model
// Context Protocol tools.
package mcp

import "time"

// SearchDocsInput defines the input parameters for the search_docs tool.
type SearchDocsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant passages"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of passages to return"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0,description=Minimum relevance score threshold (0-1)"`
	// Namespace selects the document collection to search.
	Namespace string `json:"namespace,omitempty" jsonschema:"description=Document collection to search (defaults to the default collection)"`
}

// SearchDocsOutput contains the search results.
type SearchDocsOutput struct {
	// Results is the list of matching passages, best first.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching passages found").
	Message string `json:"message,omitempty"`
}

// SearchResult is a single retrieved passage.
type SearchResult struct {
	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`
	// Filename is the original uploaded filename.
	Filename string `json:"filename"`
	// Page is the 1-based page the passage came from, 0 when unknown.
	Page int `json:"page,omitempty"`
	// ChunkIndex is the passage's position within the document.
	ChunkIndex int `json:"chunk_index"`
	// Text is the passage text.
	Text string `json:"text"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
}

// AskDocsInput defines the input parameters for the ask_docs tool.
type AskDocsInput struct {
	// Question is the natural-language question to answer from the documents.
	Question string `json:"question" jsonschema:"required,description=The question to answer from the indexed documents"`
	// TopK is the number of passages used as context.
	TopK int `json:"top_k,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Number of passages used as answer context"`
	// Namespace selects the document collection to answer from.
	Namespace string `json:"namespace,omitempty" jsonschema:"description=Document collection to answer from (defaults to the default collection)"`
}

// AskDocsOutput contains the grounded answer and its sources.
type AskDocsOutput struct {
	// Answer is the generated answer, constrained to the retrieved passages.
	Answer string `json:"answer"`
	// Sources lists the passages the answer was grounded on.
	Sources []SearchResult `json:"sources"`
}

// ListDocumentsInput defines the input parameters for the list_documents tool.
type ListDocumentsInput struct {
	// Namespace selects the document collection to list.
	Namespace string `json:"namespace,omitempty" jsonschema:"description=Document collection to list (defaults to the default collection)"`
}

// ListDocumentsOutput contains the indexed documents.
type ListDocumentsOutput struct {
	// Documents is all indexed documents.
	Documents []DocumentInfo `json:"documents"`
	// Count is the total number of documents.
	Count int `json:"count"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	// ID is the document identifier used for deletion.
	ID string `json:"id"`
	// Filename is the original uploaded filename.
	Filename string `json:"filename"`
	// ChunkCount is the number of indexed passages.
	ChunkCount int `json:"chunk_count"`
	// IngestedAt is when the document was indexed.
	IngestedAt time.Time `json:"ingested_at"`
}

// IndexStatusInput defines the input parameters for the index_status tool.
type IndexStatusInput struct {
	// Namespace selects the document collection to inspect.
	Namespace string `json:"namespace,omitempty" jsonschema:"description=Document collection to inspect (defaults to the default collection)"`
}

// IndexStatusOutput summarizes the state of the index.
type IndexStatusOutput struct {
	// Namespace is the inspected collection.
	Namespace string `json:"namespace"`
	// TotalDocuments is the number of indexed documents.
	TotalDocuments int `json:"total_documents"`
	// TotalChunks is the number of indexed passages.
	TotalChunks uint64 `json:"total_chunks"`
	// LastIngestedAt is the newest document's ingestion time, zero when empty.
	LastIngestedAt time.Time `json:"last_ingested_at,omitempty"`
}
