package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty temp dir so no ragbot.yaml or .env leaks into the test.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 800, cfg.Chunk.Size)
	assert.Equal(t, 150, cfg.Chunk.Overlap)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 4, cfg.MemoryWindow)
	assert.Equal(t, "llama2", cfg.LLMModel)
	assert.Equal(t, "all-minilm:l6-v2", cfg.EmbedModel)
	assert.Len(t, cfg.PDFURLs, 5)
	require.NoError(t, cfg.Validate())
}

func TestDefaultDoesNotShareURLSlice(t *testing.T) {
	cfg := Default()
	cfg.PDFURLs[0] = "changed"
	assert.NotEqual(t, "changed", DefaultPDFURLs[0])
}

func TestLoad_DefaultsOnly(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().TopK, cfg.TopK)
}

func TestLoad_YAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	yml := `
top_k: 5
memory_window: 2
chunk:
  size: 400
  overlap: 50
llm_provider: bedrock
llm_model: anthropic.claude-v2
embed_timeout: 5s
pdf_urls:
  - https://example.com/a.pdf
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 2, cfg.MemoryWindow)
	assert.Equal(t, 400, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
	assert.Equal(t, ProviderBedrock, cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, []string{"https://example.com/a.pdf"}, cfg.PDFURLs)
	// untouched fields keep defaults
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoad_DefaultFilePickedUp(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("top_k: 7\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.TopK)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: 5\n"), 0o644))

	t.Setenv("RAGBOT_TOP_K", "9")
	t.Setenv("RAGBOT_CHUNK_SIZE", "1000")
	t.Setenv("RAGBOT_PDF_URLS", "https://a/1.pdf,https://a/2.pdf")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.TopK)
	assert.Equal(t, 1000, cfg.Chunk.Size)
	assert.Equal(t, 150, cfg.Chunk.Overlap)
	assert.Equal(t, []string{"https://a/1.pdf", "https://a/2.pdf"}, cfg.PDFURLs)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaHost)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGBOT_MEMORY_WINDOW=6\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RAGBOT_MEMORY_WINDOW") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MemoryWindow)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "malformed yaml", yaml: "key: [unclosed"},
		{name: "invalid chunk", yaml: "chunk:\n  size: 100\n  overlap: 100\n"},
		{name: "bad env int", env: map[string]string{"RAGBOT_TOP_K": "three"}},
		{name: "zero top k", env: map[string]string{"RAGBOT_TOP_K": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			path := ""
			if tt.yaml != "" {
				path = filepath.Join(dir, "c.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t)
	_, err := Load("does-not-exist.yaml")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory window", mutate: func(c *Config) { c.MemoryWindow = 0 }, wantErr: "memory_window"},
		{name: "embed provider", mutate: func(c *Config) { c.EmbedProvider = "nope" }, wantErr: "embed_provider"},
		{name: "llm provider", mutate: func(c *Config) { c.LLMProvider = "nope" }, wantErr: "llm_provider"},
		{name: "openai key", mutate: func(c *Config) { c.LLMProvider = ProviderOpenAI }, wantErr: "OPENAI_API_KEY"},
		{name: "anthropic key", mutate: func(c *Config) { c.LLMProvider = ProviderAnthropic }, wantErr: "ANTHROPIC_API_KEY"},
		{name: "voyage key", mutate: func(c *Config) { c.EmbedProvider = "voyage" }, wantErr: "VOYAGE_API_KEY"},
		{name: "anthropic with key", mutate: func(c *Config) {
			c.LLMProvider = ProviderAnthropic
			c.AnthropicAPIKey = "k"
		}},
		{name: "batch size", mutate: func(c *Config) { c.EmbedBatchSize = 0 }, wantErr: "embed_batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.TopK = 0
	cfg.MemoryWindow = 0
	cfg.LLMModel = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"top_k", "memory_window", "llm_model"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEmbeddingConfig(t *testing.T) {
	cfg := Default()
	cfg.EmbedProvider = "hash"
	cfg.EmbedDimension = 64

	ec := cfg.EmbeddingConfig()
	assert.Equal(t, embedding.ProviderHash, ec.Provider)
	assert.Equal(t, 64, ec.Dimension)
	assert.Equal(t, cfg.EmbedCacheTTL, ec.CacheTTL)
	assert.Equal(t, uint(3), ec.Attempts)
	assert.Equal(t, cfg.RetryDelay, ec.RetryDelay)
}

func TestArtifactPaths(t *testing.T) {
	cfg := Default()
	cfg.ArtifactsDir = "out"
	cfg.ReportDir = "rep"

	assert.Equal(t, filepath.Join("out", "chunks.json"), cfg.ChunksPath())
	assert.Equal(t, filepath.Join("out", "index"), cfg.IndexPath())
	assert.Equal(t, filepath.Join("out", "eval_results.json"), cfg.EvalResultsPath())
	assert.Equal(t, filepath.Join("rep", "report.pdf"), cfg.ReportPath("pdf"))
	assert.Equal(t, filepath.Join("rep", "report.md"), cfg.ReportPath("markdown"))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLogLevel(in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("built index", "chunks", 42)

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "chunks=42")

	var rec map[string]any
	line := strings.TrimSpace(file.String())
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "built index", rec["msg"])
	assert.EqualValues(t, 42, rec["chunks"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragbot.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
