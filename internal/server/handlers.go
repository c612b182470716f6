package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/llm"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

type queryRequest struct {
	Question  string `json:"question" binding:"required"`
	TopK      int    `json:"top_k"`
	Namespace string `json:"namespace"`
}

type sourceResponse struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type documentResponse struct {
	ID         string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// errorStatus maps pipeline errors to HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, extract.ErrExtraction):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case errors.Is(err, storage.ErrEmptyNamespace):
		return http.StatusNotFound, "empty_index"
	case errors.Is(err, storage.ErrDocumentNotFound):
		return http.StatusNotFound, "document_not_found"
	case errors.Is(err, storage.ErrDimensionMismatch):
		return http.StatusInternalServerError, "dimension_mismatch"
	case errors.Is(err, embedding.ErrEmbedding):
		return http.StatusBadGateway, "embedding_failed"
	case errors.Is(err, llm.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, storage.ErrQdrantUnreachable):
		return http.StatusServiceUnavailable, "index_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "code", code, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok", "index": "connected"}
	status := http.StatusOK

	if err := s.catalog.Health(c.Request.Context()); err != nil {
		resp["status"] = "degraded"
		resp["index"] = "disconnected"
		status = http.StatusServiceUnavailable
	}
	if s.backend != nil {
		if err := s.backend.Health(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["model"] = "disconnected"
			status = http.StatusServiceUnavailable
		} else {
			resp["model"] = "connected"
		}
	}

	c.JSON(status, resp)
}

func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field", "code": "bad_request"})
		return
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "code": "too_large"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload", "code": "bad_request"})
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "code": "too_large"})
		return
	}

	namespace := c.PostForm("namespace")
	doc, err := s.ingestor.Ingest(c.Request.Context(), data, header.Filename, namespace)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, documentResponse{
		ID:         doc.ID,
		Filename:   doc.Filename,
		ChunkCount: doc.ChunkCount,
		IngestedAt: doc.IngestedAt,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = storage.DefaultNamespace
	}

	docs, err := s.catalog.ListDocuments(c.Request.Context(), namespace)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]documentResponse, len(docs))
	for i, doc := range docs {
		out[i] = documentResponse{
			ID:         doc.ID,
			Filename:   doc.Filename,
			ChunkCount: doc.ChunkCount,
			IngestedAt: doc.IngestedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"documents": out, "count": len(out)})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = storage.DefaultNamespace
	}

	if _, err := s.catalog.GetDocument(c.Request.Context(), namespace, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	if err := s.ingestor.Delete(c.Request.Context(), namespace, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) retrieve(ctx context.Context, req queryRequest) ([]retriever.Result, error) {
	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	return s.searcher.Retrieve(ctx, req.Question, topK, req.Namespace)
}

func sourcesPayload(results []retriever.Result) []sourceResponse {
	out := make([]sourceResponse, len(results))
	for i, res := range results {
		out[i] = sourceResponse{
			DocumentID: res.Chunk.DocumentID,
			Filename:   res.Chunk.Filename,
			Page:       res.Chunk.Page,
			ChunkIndex: res.Chunk.ChunkIndex,
			Text:       res.Chunk.Text,
			Score:      res.Score,
		}
	}
	return out
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "code": "bad_request"})
		return
	}

	results, err := s.retrieve(c.Request.Context(), req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	answer, err := s.answerer.Answer(c.Request.Context(), req.Question, results)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":  answer,
		"sources": sourcesPayload(results),
	})
}

// handleQueryStream serves the answer as server-sent events: one "sources"
// event with the retrieved passages, then a "token" event per model token,
// then "done". Failures before the first token are plain JSON errors; after
// that the stream ends with an "error" event.
func (s *Server) handleQueryStream(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "code": "bad_request"})
		return
	}

	results, err := s.retrieve(c.Request.Context(), req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("sources", sourcesPayload(results))
	c.Writer.Flush()

	err = s.answerer.Stream(c.Request.Context(), req.Question, results, func(token string) error {
		c.SSEvent("token", gin.H{"content": token})
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		// Client disconnects are expected; anything else is reported in-band.
		if errors.Is(err, context.Canceled) {
			return
		}
		_, code := errorStatus(err)
		c.SSEvent("error", gin.H{"error": err.Error(), "code": code})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", gin.H{})
	c.Writer.Flush()
}
