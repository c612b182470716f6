// Package server exposes the ingestion and question-answering pipeline over
// HTTP. Queries are served as plain JSON or as a server-sent event stream.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

// Ingestor is the document write path.
type Ingestor interface {
	Ingest(ctx context.Context, data []byte, filename, namespace string) (*storage.Document, error)
	Delete(ctx context.Context, namespace, documentID string) error
}

// Catalog is the document read path backed by the vector index.
type Catalog interface {
	ListDocuments(ctx context.Context, namespace string) ([]*storage.Document, error)
	GetDocument(ctx context.Context, namespace, id string) (*storage.Document, error)
	CountChunks(ctx context.Context, namespace string) (uint64, error)
	Health(ctx context.Context) error
}

// Searcher retrieves scored chunks for a question.
type Searcher interface {
	Retrieve(ctx context.Context, question string, topK int, namespace string) ([]retriever.Result, error)
}

// Answerer generates grounded answers from retrieved chunks.
type Answerer interface {
	Stream(ctx context.Context, question string, results []retriever.Result, emit func(token string) error) error
	Answer(ctx context.Context, question string, results []retriever.Result) (string, error)
}

// Pinger reports model backend reachability for the health endpoint.
type Pinger interface {
	Health(ctx context.Context) error
}

// Server wires the pipeline components behind a gin router.
type Server struct {
	ingestor Ingestor
	catalog  Catalog
	searcher Searcher
	answerer Answerer
	backend  Pinger
	logger   *slog.Logger

	maxUploadBytes int64
	defaultTopK    int

	engine *gin.Engine
	http   *http.Server
}

// Options carries the non-component server settings.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	DefaultTopK    int
	// Backend, when set, is probed by the health endpoint alongside the index.
	Backend Pinger
}

// New builds the server and registers all routes.
func New(ingestor Ingestor, catalog Catalog, searcher Searcher, answerer Answerer, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = retriever.DefaultTopK
	}

	s := &Server{
		ingestor:       ingestor,
		catalog:        catalog,
		searcher:       searcher,
		answerer:       answerer,
		backend:        opts.Backend,
		logger:         logger,
		maxUploadBytes: opts.MaxUploadBytes,
		defaultTopK:    opts.DefaultTopK,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.handleHealth)

	apiV1 := engine.Group("/api/v1")
	{
		apiV1.POST("/documents/upload", s.handleUpload)
		apiV1.GET("/documents", s.handleListDocuments)
		apiV1.DELETE("/documents/:id", s.handleDeleteDocument)
		apiV1.POST("/query", s.handleQuery)
		apiV1.POST("/query/stream", s.handleQueryStream)
	}

	s.engine = engine
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
