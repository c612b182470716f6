// Package main provides the HTTP API entry point for the document
// question-answering service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/docqa/internal/answer"
	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/ingest"
	"github.com/bull/docqa/internal/llm"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/server"
	"github.com/bull/docqa/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("DOCQA_CONFIG"), "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Embedding.Dimension)
	if err != nil {
		logger.Error("Failed to connect to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	embeddingClient, err := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		logger.Error("Failed to create embedding client", "error", err)
		os.Exit(1)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Embedding.BatchSize, cfg.Embedding.Dimension)

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		logger.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}

	split, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		logger.Error("Invalid chunking configuration", "error", err)
		os.Exit(1)
	}

	var ocr extract.OCRFunc
	if cfg.Extract.OCR && extract.Available() {
		ocr = extract.TesseractOCR()
		logger.Info("OCR fallback enabled")
	}
	extractor := extract.NewPDFExtractor(ocr, cfg.Extract.MinPageChars, logger)

	pipeline := ingest.NewPipeline(extractor, split, embedder, store, logger)
	search := retriever.New(embedder, store, logger)
	generator := answer.New(llmClient, logger)

	srv := server.New(pipeline, store, search, generator, logger, server.Options{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		DefaultTopK:    cfg.Retrieval.TopK,
		Backend:        llmClient,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}
}
