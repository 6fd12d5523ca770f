// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Embedder defines the interface for text embedding providers.
// Implementations include langchaingo backends (Ollama, OpenAI, Bedrock),
// Voyage AI over HTTP, and an offline hashing embedder.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// More efficient than multiple Embed calls for bulk operations.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the stable identifier of the embedding model.
	// Indexes record it and refuse to serve queries from a different model.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderBedrock uses Amazon Bedrock (Titan / Cohere).
	ProviderBedrock ProviderType = "bedrock"

	// ProviderVoyage uses Voyage AI (Anthropic's recommended embedding partner).
	ProviderVoyage ProviderType = "voyage"

	// ProviderHash uses the offline feature-hashing embedder.
	ProviderHash ProviderType = "hash"
)

// Config holds configuration for creating an Embedder.
type Config struct {
	// Provider specifies which embedding backend to use.
	Provider ProviderType

	// Model is the embedding model name (provider-specific).
	// Ollama: "all-minilm:l6-v2" (384-dim), "nomic-embed-text" (768-dim)
	// Voyage: "voyage-3" (1024-dim)
	Model string

	// Dimension is the required output dimension. 0 uses the provider default.
	Dimension int

	// Provider-specific settings
	OllamaHost   string
	OpenAIAPIKey string
	VoyageAPIKey string
	AWSRegion    string

	// Timeout bounds every embedding call. 0 disables it. For Voyage it
	// bounds each HTTP attempt.
	Timeout time.Duration

	// Attempts and RetryDelay drive the Voyage retry policy.
	Attempts   uint
	RetryDelay time.Duration

	// CacheTTL enables query memoisation when positive.
	CacheTTL time.Duration
}

// New creates an Embedder based on the provided configuration.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderBedrock, "":
		e, err = NewLangchainClient(ctx, cfg)

	case ProviderVoyage:
		e, err = NewVoyageClient(cfg.VoyageAPIKey, VoyageOptions{
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Attempts:  cfg.Attempts,
			Delay:     cfg.RetryDelay,
			Timeout:   cfg.Timeout,
		})

	case ProviderHash:
		e, err = NewHashingEmbedder(cfg.Dimension)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 && cfg.Provider != ProviderVoyage {
		e = WithTimeout(e, cfg.Timeout)
	}
	if cfg.CacheTTL > 0 {
		e = NewCached(e, cfg.CacheTTL)
	}
	return e, nil
}
