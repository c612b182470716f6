// Package main provides the docqa CLI for managing and querying the
// document index from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/docqa/internal/answer"
	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/ingest"
	"github.com/bull/docqa/internal/llm"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

var (
	flagConfig    string
	flagNamespace string
	flagTopK      int
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document question answering over a local vector index",
	Long: `CLI for ingesting PDF documents into Qdrant and asking questions
answered only from the indexed content.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY API key for embeddings and chat (required unless a
                 local base URL is configured)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf> [more.pdf ...]",
	Short: "Ingest one or more PDF files into the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE:  runDocsList,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("DOCQA_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagNamespace, "namespace", "", "document collection (default: default)")
	askCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of passages used as context")

	docsCmd.AddCommand(docsListCmd, docsDeleteCmd)
	rootCmd.AddCommand(ingestCmd, askCmd, docsCmd, statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired pipeline components for one CLI invocation.
type app struct {
	cfg      *config.Config
	store    *storage.QdrantStore
	embedder *embedding.Embedder
}

func buildApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	embeddingClient, err := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Embedding.BatchSize, cfg.Embedding.Dimension)

	return &app{cfg: cfg, store: store, embedder: embedder}, nil
}

func (a *app) pipeline() (*ingest.Pipeline, error) {
	split, err := chunker.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	var ocr extract.OCRFunc
	if a.cfg.Extract.OCR && extract.Available() {
		ocr = extract.TesseractOCR()
	}
	extractor := extract.NewPDFExtractor(ocr, a.cfg.Extract.MinPageChars, slog.Default())

	return ingest.NewPipeline(extractor, split, a.embedder, a.store, slog.Default()), nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  %s: %v\n", path, err)
			failed++
			continue
		}

		doc, err := pipeline.Ingest(ctx, data, filepath.Base(path), flagNamespace)
		if err != nil {
			fmt.Printf("  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("  %s: %d chunks (id %s)\n", doc.Filename, doc.ChunkCount, doc.ID)
	}

	fmt.Println()
	fmt.Printf("Ingested %d/%d files in %s\n", len(args)-failed, len(args), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := strings.Join(args, " ")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: a.cfg.LLM.BaseURL,
		Model:   a.cfg.LLM.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	topK := flagTopK
	if topK == 0 {
		topK = a.cfg.Retrieval.TopK
	}

	search := retriever.New(a.embedder, a.store, slog.Default())
	results, err := search.Retrieve(ctx, question, topK, flagNamespace)
	if err != nil {
		return err
	}

	generator := answer.New(llmClient, slog.Default())
	err = generator.Stream(ctx, question, results, func(token string) error {
		fmt.Print(token)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println()

	if len(results) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, res := range results {
			fmt.Printf("  %d. %s (page %d, score %.2f)\n", i+1, res.Chunk.Filename, res.Chunk.Page, res.Score)
		}
	}
	return nil
}

func runDocsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	docs, err := a.store.ListDocuments(ctx, namespace())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("  %s  %-40s %5d chunks  %s\n",
			doc.ID, doc.Filename, doc.ChunkCount, doc.IngestedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	fmt.Printf("%d document(s)\n", len(docs))
	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	id := args[0]
	if _, err := a.store.GetDocument(ctx, namespace(), id); err != nil {
		return err
	}
	if err := a.store.DeleteDocument(ctx, namespace(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.store.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}

	docs, err := a.store.ListDocuments(ctx, namespace())
	if err != nil {
		return err
	}
	chunks, err := a.store.CountChunks(ctx, namespace())
	if err != nil {
		return err
	}

	fmt.Printf("Namespace: %s\n", namespace())
	fmt.Printf("Documents: %d\n", len(docs))
	fmt.Printf("Chunks:    %d\n", chunks)
	return nil
}

func namespace() string {
	if flagNamespace != "" {
		return flagNamespace
	}
	return storage.DefaultNamespace
}
