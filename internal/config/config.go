// Package config loads ragbot configuration from defaults, YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/raphaelgruber/ragbot/internal/parser"
	"gopkg.in/yaml.v3"
)

// LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// DefaultConfigFile is read when no explicit config path is given and it exists.
const DefaultConfigFile = "ragbot.yaml"

// DefaultPDFURLs are the five papers of the default corpus.
var DefaultPDFURLs = []string{
	"https://arxiv.org/pdf/1706.03762.pdf", // Attention Is All You Need
	"https://arxiv.org/pdf/1810.04805.pdf", // BERT
	"https://arxiv.org/pdf/2005.14165.pdf", // GPT-3
	"https://arxiv.org/pdf/1907.11692.pdf", // RoBERTa
	"https://arxiv.org/pdf/1910.10683.pdf", // T5
}

// Config holds all configuration values.
type Config struct {
	// Paths
	DataDir       string `yaml:"data_dir" env:"RAGBOT_DATA_DIR"`
	ArtifactsDir  string `yaml:"artifacts_dir" env:"RAGBOT_ARTIFACTS_DIR"`
	ReportDir     string `yaml:"report_dir" env:"RAGBOT_REPORT_DIR"`
	QuestionsFile string `yaml:"questions_file" env:"RAGBOT_QUESTIONS_FILE"`

	// Corpus
	PDFURLs []string `yaml:"pdf_urls" env:"RAGBOT_PDF_URLS" envSeparator:","`

	// Retrieval
	Chunk        parser.ChunkConfig `yaml:"chunk" envPrefix:"RAGBOT_CHUNK_"`
	TopK         int                `yaml:"top_k" env:"RAGBOT_TOP_K"`
	MemoryWindow int                `yaml:"memory_window" env:"RAGBOT_MEMORY_WINDOW"`

	// Embeddings
	EmbedProvider    string        `yaml:"embed_provider" env:"RAGBOT_EMBED_PROVIDER"`
	EmbedModel       string        `yaml:"embed_model" env:"RAGBOT_EMBED_MODEL"`
	EmbedDimension   int           `yaml:"embed_dimension" env:"RAGBOT_EMBED_DIMENSION"`
	EmbedBatchSize   int           `yaml:"embed_batch_size" env:"RAGBOT_EMBED_BATCH_SIZE"`
	EmbedConcurrency int           `yaml:"embed_concurrency" env:"RAGBOT_EMBED_CONCURRENCY"`
	EmbedTimeout     time.Duration `yaml:"embed_timeout" env:"RAGBOT_EMBED_TIMEOUT"`
	EmbedAttempts    uint          `yaml:"embed_attempts" env:"RAGBOT_EMBED_ATTEMPTS"`
	EmbedCacheTTL    time.Duration `yaml:"embed_cache_ttl" env:"RAGBOT_EMBED_CACHE_TTL"`

	// Generation
	LLMProvider     string        `yaml:"llm_provider" env:"RAGBOT_LLM_PROVIDER"`
	LLMModel        string        `yaml:"llm_model" env:"RAGBOT_LLM_MODEL"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" env:"RAGBOT_GENERATE_TIMEOUT"`

	// Provider endpoints and credentials. Keys are never read from YAML.
	OllamaHost      string `yaml:"ollama_host" env:"OLLAMA_HOST"`
	AWSRegion       string `yaml:"aws_region" env:"AWS_REGION"`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	VoyageAPIKey    string `yaml:"-" env:"VOYAGE_API_KEY"`

	// Retries
	FetchAttempts uint          `yaml:"fetch_attempts" env:"RAGBOT_FETCH_ATTEMPTS"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"RAGBOT_FETCH_TIMEOUT"`
	EvalAttempts  uint          `yaml:"eval_attempts" env:"RAGBOT_EVAL_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"RAGBOT_RETRY_DELAY"`

	// Logging
	LogFile  string `yaml:"log_file" env:"RAGBOT_LOG_FILE"`
	LogLevel string `yaml:"log_level" env:"RAGBOT_LOG_LEVEL"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		DataDir:       "data",
		ArtifactsDir:  "artifacts",
		ReportDir:     "report",
		QuestionsFile: "questions.json",

		PDFURLs: slices.Clone(DefaultPDFURLs),

		Chunk:        parser.DefaultChunkConfig(),
		TopK:         3,
		MemoryWindow: 4,

		EmbedProvider:    string(embedding.ProviderOllama),
		EmbedModel:       embedding.DefaultOllamaModel,
		EmbedDimension:   embedding.DefaultOllamaDimension,
		EmbedBatchSize:   16,
		EmbedConcurrency: 4,
		EmbedTimeout:     30 * time.Second,
		EmbedAttempts:    3,
		EmbedCacheTTL:    10 * time.Minute,

		LLMProvider:     ProviderOllama,
		LLMModel:        "llama2",
		GenerateTimeout: 2 * time.Minute,

		OllamaHost: "http://localhost:11434",

		FetchAttempts: 3,
		FetchTimeout:  2 * time.Minute,
		EvalAttempts:  2,
		RetryDelay:    time.Second,

		LogFile:  filepath.Join(os.TempDir(), "ragbot.log"),
		LogLevel: "INFO",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// ragbot.yaml in the working directory when path is empty and it exists),
// then a .env file, then environment variables. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: load .env: %w", models.ErrConfiguration, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse environment: %w", models.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %w", models.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file %s: %w", models.ErrConfiguration, path, err)
	}
	return nil
}

var (
	embedProviders = []string{
		string(embedding.ProviderOllama),
		string(embedding.ProviderOpenAI),
		string(embedding.ProviderBedrock),
		string(embedding.ProviderVoyage),
		string(embedding.ProviderHash),
	}
	llmProviders = []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock}
)

// Validate reports every invalid setting at once, wrapped in models.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if err := c.Chunk.Validate(); err != nil {
		errs = append(errs, err)
	}
	check(c.TopK > 0, "top_k must be positive, got %d", c.TopK)
	check(c.MemoryWindow >= 1, "memory_window must be at least 1, got %d", c.MemoryWindow)

	check(slices.Contains(embedProviders, c.EmbedProvider), "unknown embed_provider %q", c.EmbedProvider)
	check(c.EmbedDimension >= 0, "embed_dimension must not be negative")
	check(c.EmbedBatchSize > 0, "embed_batch_size must be positive, got %d", c.EmbedBatchSize)
	check(c.EmbedConcurrency > 0, "embed_concurrency must be positive, got %d", c.EmbedConcurrency)
	check(c.EmbedTimeout >= 0, "embed_timeout must not be negative")
	check(c.EmbedCacheTTL >= 0, "embed_cache_ttl must not be negative")

	check(slices.Contains(llmProviders, c.LLMProvider), "unknown llm_provider %q", c.LLMProvider)
	check(c.LLMModel != "", "llm_model is required")
	check(c.GenerateTimeout >= 0, "generate_timeout must not be negative")

	needsKey := func(provider, key, name string) {
		check(key != "", "%s provider requires %s", provider, name)
	}
	if c.LLMProvider == ProviderOpenAI || c.EmbedProvider == string(embedding.ProviderOpenAI) {
		needsKey("openai", c.OpenAIAPIKey, "OPENAI_API_KEY")
	}
	if c.LLMProvider == ProviderAnthropic {
		needsKey("anthropic", c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	}
	if c.EmbedProvider == string(embedding.ProviderVoyage) {
		needsKey("voyage", c.VoyageAPIKey, "VOYAGE_API_KEY")
	}

	check(c.DataDir != "", "data_dir is required")
	check(c.ArtifactsDir != "", "artifacts_dir is required")
	check(c.ReportDir != "", "report_dir is required")
	check(c.FetchAttempts >= 1, "fetch_attempts must be at least 1")
	check(c.EvalAttempts >= 1, "eval_attempts must be at least 1")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// EmbeddingConfig returns the settings for embedding.New.
func (c Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		Provider:     embedding.ProviderType(c.EmbedProvider),
		Model:        c.EmbedModel,
		Dimension:    c.EmbedDimension,
		OllamaHost:   c.OllamaHost,
		OpenAIAPIKey: c.OpenAIAPIKey,
		VoyageAPIKey: c.VoyageAPIKey,
		AWSRegion:    c.AWSRegion,
		Timeout:      c.EmbedTimeout,
		Attempts:     c.EmbedAttempts,
		RetryDelay:   c.RetryDelay,
		CacheTTL:     c.EmbedCacheTTL,
	}
}

// ChunksPath is the chunk-set artifact.
func (c Config) ChunksPath() string {
	return filepath.Join(c.ArtifactsDir, "chunks.json")
}

// IndexPath is the index artifact directory.
func (c Config) IndexPath() string {
	return filepath.Join(c.ArtifactsDir, "index")
}

// EvalResultsPath is the evaluation result artifact.
func (c Config) EvalResultsPath() string {
	return filepath.Join(c.ArtifactsDir, "eval_results.json")
}

// ReportPath is the rendered report for the given format ("pdf" or "markdown").
func (c Config) ReportPath(format string) string {
	if format == "markdown" || format == "md" {
		return filepath.Join(c.ReportDir, "report.md")
	}
	return filepath.Join(c.ReportDir, "report.pdf")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
