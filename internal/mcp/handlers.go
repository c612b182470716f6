package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

func toSearchResults(results []retriever.Result) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResult{
			DocumentID: res.Chunk.DocumentID,
			Filename:   res.Chunk.Filename,
			Page:       res.Chunk.Page,
			ChunkIndex: res.Chunk.ChunkIndex,
			Text:       res.Chunk.Text,
			Score:      res.Score,
		})
	}
	return out
}

// makeSearchHandler creates the search_docs tool handler. Retrieval failures
// on an empty index are reported as a message rather than a tool error so the
// client can tell the user to upload documents first.
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchDocsInput,
) (*mcp.CallToolResult, SearchDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocsInput) (
		*mcp.CallToolResult, SearchDocsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = retriever.DefaultTopK
		}

		results, err := searcher.Retrieve(ctx, input.Query, maxResults, input.Namespace)
		if err != nil {
			if errors.Is(err, storage.ErrEmptyNamespace) {
				return nil, SearchDocsOutput{
					Results: []SearchResult{},
					Message: "No documents have been indexed yet. Upload documents before searching.",
				}, nil
			}
			return nil, SearchDocsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		filtered := make([]SearchResult, 0, len(results))
		for _, res := range toSearchResults(results) {
			if res.Score < input.MinScore {
				continue
			}
			filtered = append(filtered, res)
		}

		if len(filtered) == 0 {
			return nil, SearchDocsOutput{
				Results: []SearchResult{},
				Message: "No matching passages found. Try broader search terms or a lower min_score.",
			}, nil
		}

		return nil, SearchDocsOutput{Results: filtered}, nil
	}
}

// makeAskHandler creates the ask_docs tool handler. It runs retrieval and
// answer generation end to end and returns the answer alongside the passages
// it was grounded on.
func makeAskHandler(searcher Searcher, answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, AskDocsInput,
) (*mcp.CallToolResult, AskDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDocsInput) (
		*mcp.CallToolResult, AskDocsOutput, error,
	) {
		topK := input.TopK
		if topK <= 0 {
			topK = retriever.DefaultTopK
		}

		results, err := searcher.Retrieve(ctx, input.Question, topK, input.Namespace)
		if err != nil {
			if errors.Is(err, storage.ErrEmptyNamespace) {
				return nil, AskDocsOutput{
					Answer:  "No documents have been indexed yet. Upload documents before asking questions.",
					Sources: []SearchResult{},
				}, nil
			}
			return nil, AskDocsOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		answer, err := answerer.Answer(ctx, input.Question, results)
		if err != nil {
			return nil, AskDocsOutput{}, fmt.Errorf("answer generation failed: %w", err)
		}

		return nil, AskDocsOutput{
			Answer:  answer,
			Sources: toSearchResults(results),
		}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		namespace := input.Namespace
		if namespace == "" {
			namespace = storage.DefaultNamespace
		}

		docs, err := catalog.ListDocuments(ctx, namespace)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		out := make([]DocumentInfo, 0, len(docs))
		for _, doc := range docs {
			out = append(out, DocumentInfo{
				ID:         doc.ID,
				Filename:   doc.Filename,
				ChunkCount: doc.ChunkCount,
				IngestedAt: doc.IngestedAt,
			})
		}

		return nil, ListDocumentsOutput{Documents: out, Count: len(out)}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		namespace := input.Namespace
		if namespace == "" {
			namespace = storage.DefaultNamespace
		}

		docs, err := catalog.ListDocuments(ctx, namespace)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		chunks, err := catalog.CountChunks(ctx, namespace)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to count passages: %w", err)
		}

		status := IndexStatusOutput{
			Namespace:      namespace,
			TotalDocuments: len(docs),
			TotalChunks:    chunks,
		}
		for _, doc := range docs {
			if doc.IngestedAt.After(status.LastIngestedAt) {
				status.LastIngestedAt = doc.IngestedAt
			}
		}

		return nil, status, nil
	}
}
