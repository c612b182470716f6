package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

// Searcher retrieves scored chunks for a question.
type Searcher interface {
	Retrieve(ctx context.Context, question string, topK int, namespace string) ([]retriever.Result, error)
}

// Answerer generates a grounded answer from retrieved chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, results []retriever.Result) (string, error)
}

// Catalog is the document read path backed by the vector index.
type Catalog interface {
	ListDocuments(ctx context.Context, namespace string) ([]*storage.Document, error)
	CountChunks(ctx context.Context, namespace string) (uint64, error)
	Health(ctx context.Context) error
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server   *mcp.Server
	searcher Searcher
	answerer Answerer
	catalog  Catalog
}

// Config holds server dependencies.
type Config struct {
	Searcher Searcher
	Answerer Answerer
	Catalog  Catalog
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "docqa-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_docs",
		Description: "Search the indexed documents semantically. Returns the most relevant passages with similarity scores.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_docs",
		Description: "Ask a question about the indexed documents. Returns an answer grounded in retrieved passages, with the sources used.",
	}, makeAskHandler(cfg.Searcher, cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all indexed documents with their chunk counts and ingestion times.",
	}, makeListHandler(cfg.Catalog))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Get the current status of the document index including document and passage counts.",
	}, makeStatusHandler(cfg.Catalog))

	return &Server{
		server:   server,
		searcher: cfg.Searcher,
		answerer: cfg.Answerer,
		catalog:  cfg.Catalog,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
