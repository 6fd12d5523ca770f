// Package embedding_test contains tests for embedding clients.
package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderInterface(t *testing.T) {
	var _ embedding.Embedder = (*embedding.LangchainClient)(nil)
	var _ embedding.Embedder = (*embedding.VoyageClient)(nil)
	var _ embedding.Embedder = (*embedding.HashingEmbedder)(nil)
	var _ embedding.Embedder = (*embedding.Cached)(nil)
}

func TestNewLangchainClient_OllamaDefaults(t *testing.T) {
	client, err := embedding.NewLangchainClient(context.Background(), embedding.Config{
		Provider: embedding.ProviderOllama,
	})
	require.NoError(t, err, "should create client with default model")
	assert.Equal(t, embedding.DefaultOllamaModel, client.Model())
	assert.Equal(t, embedding.DefaultOllamaDimension, client.Dimension())
}

func TestNewLangchainClient_CustomModel(t *testing.T) {
	client, err := embedding.NewLangchainClient(context.Background(), embedding.Config{
		Provider:  embedding.ProviderOllama,
		Model:     "nomic-embed-text",
		Dimension: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", client.Model())
	assert.Equal(t, 768, client.Dimension())
}

func TestNewLangchainClient_OpenAIRequiresKey(t *testing.T) {
	_, err := embedding.NewLangchainClient(context.Background(), embedding.Config{
		Provider: embedding.ProviderOpenAI,
	})
	assert.Error(t, err)
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name      string
		cfg       embedding.Config
		wantModel string
		wantErr   bool
	}{
		{"hash", embedding.Config{Provider: embedding.ProviderHash, Dimension: 64}, "hash-64", false},
		{"hash default", embedding.Config{Provider: embedding.ProviderHash}, "hash-256", false},
		{"voyage without key", embedding.Config{Provider: embedding.ProviderVoyage}, "", true},
		{"voyage", embedding.Config{Provider: embedding.ProviderVoyage, VoyageAPIKey: "k"}, embedding.DefaultVoyageModel, false},
		{"unknown", embedding.Config{Provider: "nope"}, "", true},
		{"cached hash", embedding.Config{Provider: embedding.ProviderHash, CacheTTL: time.Minute}, "hash-256", false},
		{"timeout hash", embedding.Config{Provider: embedding.ProviderHash, Timeout: time.Second}, "hash-256", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := embedding.New(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, e.Model())
		})
	}
}

func TestHashingEmbedder(t *testing.T) {
	ctx := context.Background()
	h, err := embedding.NewHashingEmbedder(128)
	require.NoError(t, err)

	a1, err := h.Embed(ctx, "Self-attention relates positions of a sequence.")
	require.NoError(t, err)
	a2, err := h.Embed(ctx, "Self-attention relates positions of a sequence.")
	require.NoError(t, err)
	assert.Equal(t, a1, a2, "embedding must be deterministic")
	assert.Len(t, a1, 128)
	assert.InDelta(t, 1.0, norm(a1), 1e-5, "vectors are unit length")

	similar, err := h.Embed(ctx, "self-attention over sequence positions")
	require.NoError(t, err)
	different, err := h.Embed(ctx, "stock market prices fell sharply")
	require.NoError(t, err)
	assert.Greater(t, dot(a1, similar), dot(a1, different))

	empty, err := h.Embed(ctx, "the of and")
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm(empty), "stop words only gives zero vector")

	batch, err := h.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = embedding.NewHashingEmbedder(-1)
	assert.Error(t, err)
}

func TestHashingEmbedder_CancelledContext(t *testing.T) {
	h, err := embedding.NewHashingEmbedder(0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

// voyageServer answers with statuses in order, then with dim-sized vectors.
// Successful responses list vectors in reverse order.
func voyageServer(t *testing.T, dim int, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"detail":"bad"}`))
			return
		}

		var req struct {
			Input     []string `json:"input"`
			InputType string   `json:"input_type"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Input) == 1 {
			assert.Equal(t, "query", req.InputType)
		} else {
			assert.Equal(t, "document", req.InputType)
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			data = append(data, item{Embedding: vec, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newVoyage(t *testing.T, srv *httptest.Server, dim int) *embedding.VoyageClient {
	t.Helper()
	c, err := embedding.NewVoyageClient("test-key", embedding.VoyageOptions{
		Dimension: dim,
		Endpoint:  srv.URL,
		Client:    srv.Client(),
		Attempts:  3,
		Delay:     time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestVoyageClient(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by index", func(t *testing.T) {
		srv, _ := voyageServer(t, 4)
		c := newVoyage(t, srv, 4)

		vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		assert.Equal(t, float32(1), vecs[0][0])
		assert.Equal(t, float32(3), vecs[2][0])

		one, err := c.Embed(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, one, 4)
	})

	t.Run("retries throttles and server errors", func(t *testing.T) {
		srv, hits := voyageServer(t, 4, http.StatusTooManyRequests, http.StatusBadGateway)
		c := newVoyage(t, srv, 4)

		_, err := c.Embed(ctx, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 3, hits.Load())
	})

	t.Run("gives up rate limited", func(t *testing.T) {
		srv, hits := voyageServer(t, 4, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests)
		c := newVoyage(t, srv, 4)

		_, err := c.Embed(ctx, "a")
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrRateLimited)
		assert.True(t, models.IsRetryable(err))
		assert.EqualValues(t, 3, hits.Load())
	})

	t.Run("client error not retried", func(t *testing.T) {
		srv, hits := voyageServer(t, 4, http.StatusUnauthorized)
		c := newVoyage(t, srv, 4)

		_, err := c.Embed(ctx, "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.EqualValues(t, 1, hits.Load())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv, hits := voyageServer(t, 3)
		c := newVoyage(t, srv, 4)

		_, err := c.Embed(ctx, "a")
		assert.ErrorIs(t, err, models.ErrEmbeddingFailure)
		assert.EqualValues(t, 1, hits.Load())
	})

	t.Run("attempt timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		c, err := embedding.NewVoyageClient("test-key", embedding.VoyageOptions{
			Dimension: 4,
			Endpoint:  srv.URL,
			Attempts:  1,
			Timeout:   20 * time.Millisecond,
		})
		require.NoError(t, err)

		_, err = c.Embed(ctx, "a")
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrTimeout)
	})

	t.Run("empty batch", func(t *testing.T) {
		c, err := embedding.NewVoyageClient("test-key", embedding.VoyageOptions{})
		require.NoError(t, err)
		vecs, err := c.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.Equal(t, embedding.DefaultVoyageDimension, c.Dimension())
		assert.Equal(t, embedding.DefaultVoyageModel, c.Model())
	})

	t.Run("requires key", func(t *testing.T) {
		_, err := embedding.NewVoyageClient("", embedding.VoyageOptions{})
		assert.ErrorIs(t, err, models.ErrConfiguration)
	})
}

// countingEmbedder counts calls to the wrapped hashing embedder.
type countingEmbedder struct {
	embedding.Embedder
	calls atomic.Int32
	delay time.Duration
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func newCounting(t *testing.T) *countingEmbedder {
	h, err := embedding.NewHashingEmbedder(32)
	require.NoError(t, err)
	return &countingEmbedder{Embedder: h}
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := newCounting(t)
	c := embedding.NewCached(inner, time.Minute)

	v1, err := c.Embed(ctx, "query")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), inner.calls.Load())

	vecs, err := c.EmbedBatch(ctx, []string{"query", "other", "third"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, v1, vecs[0])
	assert.Equal(t, int32(2), inner.calls.Load(), "misses embedded in one batch call")
	assert.Equal(t, 3, c.Len())

	_, err = c.EmbedBatch(ctx, []string{"other", "third"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "all hits")
	assert.Equal(t, "hash-32", c.Model())
	assert.Equal(t, 32, c.Dimension())
}

// shortBatchEmbedder drops the last vector of every batch.
type shortBatchEmbedder struct {
	embedding.Embedder
}

func (s shortBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vecs[:len(vecs)-1], nil
}

func TestCached_BatchCountMismatch(t *testing.T) {
	c := embedding.NewCached(shortBatchEmbedder{Embedder: newCounting(t)}, time.Minute)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmbeddingFailure)
	assert.Nil(t, vecs)
	assert.Zero(t, c.Len(), "nothing cached from a bad batch")
}

func TestWithTimeout(t *testing.T) {
	inner := newCounting(t)
	inner.delay = time.Second

	e := embedding.WithTimeout(inner, 20*time.Millisecond)
	_, err := e.Embed(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.True(t, models.IsRetryable(err))

	inner.delay = 0
	_, err = e.Embed(context.Background(), "fast")
	assert.NoError(t, err)
}

func TestWithTimeout_PassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	e := embedding.WithTimeout(failingEmbedder{err: boom}, time.Second)
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrTimeout)
}

func TestWithMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	e := embedding.WithMetrics(newCounting(t), collector)

	_, err := e.Embed(context.Background(), "one")
	require.NoError(t, err)
	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	st, ok := collector.Snapshot().Stage(metrics.OpEmbedding)
	require.True(t, ok)
	assert.Equal(t, int64(2), st.Calls)
	assert.Zero(t, st.Errors)

	assert.Same(t, e, embedding.WithMetrics(e, nil), "nil collector leaves embedder unwrapped")
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }
func (f failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}
func (f failingEmbedder) Model() string  { return "failing" }
func (f failingEmbedder) Dimension() int { return 1 }

func TestOllamaEmbed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("OLLAMA_HOST") == "" {
		t.Skip("OLLAMA_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := embedding.NewLangchainClient(ctx, embedding.Config{
		Provider:   embedding.ProviderOllama,
		OllamaHost: os.Getenv("OLLAMA_HOST"),
	})
	require.NoError(t, err)

	emb, err := client.Embed(ctx, "This is a test sentence for embedding.")
	require.NoError(t, err)
	assert.Len(t, emb, client.Dimension())
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
