package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/raphaelgruber/ragbot/internal/models"
)

// Cached memoises embeddings by exact text. Repeated queries in a chat
// session skip the embedding service entirely.
type Cached struct {
	next  Embedder
	cache *cache.Cache
}

// Compile-time check that Cached implements Embedder.
var _ Embedder = (*Cached)(nil)

// NewCached wraps next with an in-memory cache whose entries expire after ttl.
func NewCached(next Embedder, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Embed returns the cached vector or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, cache.DefaultExpiration)
	return vec, nil
}

// EmbedBatch serves hits from the cache and embeds only the misses, in one call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingFailure, len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Set(texts[i], vecs[j], cache.DefaultExpiration)
	}
	return out, nil
}

// Model returns the wrapped model name.
func (c *Cached) Model() string {
	return c.next.Model()
}

// Dimension returns the wrapped dimension.
func (c *Cached) Dimension() int {
	return c.next.Dimension()
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
