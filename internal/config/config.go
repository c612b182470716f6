// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/llm"
	"github.com/bull/docqa/internal/retriever"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Extract   ExtractConfig   `yaml:"extract"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type ExtractConfig struct {
	MinPageChars int  `yaml:"min_page_chars"`
	OCR          bool `yaml:"ocr"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "0.0.0.0:8080",
			MaxUploadMB: 20,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Embedding: EmbeddingConfig{
			Model:     embedding.DefaultModel,
			Dimension: embedding.DefaultDimension,
			BatchSize: embedding.DefaultBatchSize,
		},
		LLM: LLMConfig{
			Model: llm.DefaultModel,
		},
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultChunkSize,
			Overlap: chunker.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK: retriever.DefaultTopK,
		},
		Extract: ExtractConfig{
			MinPageChars: 0, // extractor default
			OCR:          true,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("DOCQA_ADDR", c.Server.Addr)
	c.Server.MaxUploadMB = getEnvInt("DOCQA_MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Qdrant.Host = getEnv("QDRANT_HOST", c.Qdrant.Host)
	c.Qdrant.Port = getEnvInt("QDRANT_PORT", c.Qdrant.Port)
	c.Embedding.BaseURL = getEnv("DOCQA_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnv("DOCQA_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = getEnvInt("DOCQA_EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.LLM.BaseURL = getEnv("DOCQA_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("DOCQA_LLM_MODEL", c.LLM.Model)
	c.Chunking.Size = getEnvInt("DOCQA_CHUNK_SIZE", c.Chunking.Size)
	c.Chunking.Overlap = getEnvInt("DOCQA_CHUNK_OVERLAP", c.Chunking.Overlap)
	c.Retrieval.TopK = getEnvInt("DOCQA_TOP_K", c.Retrieval.TopK)
}

// Validate enforces the documented bounds.
func (c *Config) Validate() error {
	if c.Chunking.Size < chunker.MinChunkSize || c.Chunking.Size > chunker.MaxChunkSize {
		return fmt.Errorf("chunking.size %d outside [%d, %d]",
			c.Chunking.Size, chunker.MinChunkSize, chunker.MaxChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap %d must satisfy 0 <= overlap < size", c.Chunking.Overlap)
	}
	if c.Retrieval.TopK < retriever.MinTopK || c.Retrieval.TopK > retriever.MaxTopK {
		return fmt.Errorf("retrieval.top_k %d outside [%d, %d]",
			c.Retrieval.TopK, retriever.MinTopK, retriever.MaxTopK)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
