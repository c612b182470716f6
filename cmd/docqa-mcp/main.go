// Package main provides the MCP server entry point for document question
// answering. Runs over stdio by default, or Streamable HTTP with --http.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/docqa/internal/answer"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/llm"
	mcpserver "github.com/bull/docqa/internal/mcp"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("DOCQA_CONFIG"), "path to YAML config file")
	httpAddr := flag.String("http", "", "serve MCP over Streamable HTTP on this address instead of stdio")
	flag.Parse()

	// Stdio transport owns stdout, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
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
		logger.Error("Failed to connect to Qdrant", "error", err)
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

	server := mcpserver.NewServer(&mcpserver.Config{
		Searcher: retriever.New(embedder, store, logger),
		Answerer: answer.New(llmClient, logger),
		Catalog:  store,
	})

	if *httpAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/", mcpserver.NewLandingHandler())
		mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
		mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

		logger.Info("MCP Streamable HTTP server listening", "addr", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, mux); err != nil {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("MCP server running (stdio)")
	if err := server.Run(ctx); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}
