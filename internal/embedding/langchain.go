package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/embeddings"
	lcbedrock "github.com/tmc/langchaingo/embeddings/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOllamaModel is the embedding model that produces 384-dimensional vectors.
	DefaultOllamaModel = "all-minilm:l6-v2"

	// DefaultOllamaDimension is the dimension for all-minilm:l6-v2.
	DefaultOllamaDimension = 384

	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the dimension for text-embedding-3-small.
	DefaultOpenAIDimension = 1536

	// DefaultBedrockModel is the default Bedrock embedding model.
	DefaultBedrockModel = lcbedrock.ModelTitanEmbedG1

	// DefaultBedrockDimension is the dimension for Titan embeddings G1.
	DefaultBedrockDimension = 1536
)

// LangchainClient wraps a langchaingo embedder with dimension validation.
type LangchainClient struct {
	model     embeddings.Embedder
	dimension int
	modelName string
}

// Compile-time check that LangchainClient implements Embedder.
var _ Embedder = (*LangchainClient)(nil)

// NewLangchainClient creates an embedder for the ollama, openai or bedrock provider.
func NewLangchainClient(ctx context.Context, cfg Config) (*LangchainClient, error) {
	var model embeddings.Embedder
	var err error

	modelName := cfg.Model
	dimension := cfg.Dimension

	switch cfg.Provider {
	case ProviderOllama, "":
		modelName = orDefault(modelName, DefaultOllamaModel)
		dimension = orDefaultInt(dimension, DefaultOllamaDimension)

		opts := []ollama.Option{ollama.WithModel(modelName)}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		llm, ollamaErr := ollama.New(opts...)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		modelName = orDefault(modelName, DefaultOpenAIModel)
		dimension = orDefaultInt(dimension, DefaultOpenAIDimension)

		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(modelName),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	case ProviderBedrock:
		modelName = orDefault(modelName, DefaultBedrockModel)
		dimension = orDefaultInt(dimension, DefaultBedrockDimension)

		client, clientErr := newBedrockClient(ctx, cfg.AWSRegion)
		if clientErr != nil {
			return nil, clientErr
		}
		model, err = lcbedrock.NewBedrock(
			lcbedrock.WithModel(modelName),
			lcbedrock.WithClient(client),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return &LangchainClient{
		model:     model,
		dimension: dimension,
		modelName: modelName,
	}, nil
}

// newBedrockClient loads AWS credentials from the default chain.
func newBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// Embed generates an embedding vector for text.
func (e *LangchainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	slog.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, []string{text})
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	embedding := vectors[0]
	if len(embedding) != e.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(embedding), e.dimension, e.modelName)
	}

	slog.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangchainClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dimension)
		}
	}

	return vectors, nil
}

// Model returns the embedding model name.
func (e *LangchainClient) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *LangchainClient) Dimension() int {
	return e.dimension
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
