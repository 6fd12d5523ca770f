// Package index builds, persists and queries an exact vector index over chunks.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/models"
	"golang.org/x/sync/errgroup"
)

// Index maps unit-normalised vectors to their chunks. It is immutable after
// Build or Load, so concurrent Search calls need no locking.
type Index struct {
	modelID   string
	dimension int
	chunks    []models.Chunk
	vectors   [][]float32
}

// Result is a chunk ranked by similarity to a query.
type Result struct {
	Chunk models.Chunk
	Score float32
}

// BuildOptions configures parallel embedding during Build.
type BuildOptions struct {
	// BatchSize is the number of chunks sent per EmbedBatch call (default 16).
	BatchSize int
	// Concurrency is the number of batches embedded in parallel (default 4).
	Concurrency int
	// OnProgress is called after each batch with the number of chunks done.
	// It may be called from several goroutines at once.
	OnProgress func(done, total int)
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Build embeds every chunk and assembles an index.
//
// Batches are embedded in parallel; results are placed back by position so
// the index layout matches the input order. Every failing batch is reported
// in the returned error, which wraps models.ErrEmbeddingFailure.
func Build(ctx context.Context, chunks []models.Chunk, e embedding.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", models.ErrConfiguration)
	}
	opts = opts.withDefaults()
	total := len(chunks)
	start := time.Now()

	slog.Info("building index", "chunks", total, "model", e.Model(), "batch_size", opts.BatchSize, "concurrency", opts.Concurrency)

	vectors := make([][]float32, total)
	var (
		done   atomic.Int32
		errsMu sync.Mutex
		errs   []error
	)

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for lo := 0; lo < total; lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, total)
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			texts := make([]string, hi-lo)
			for i := lo; i < hi; i++ {
				texts[i-lo] = chunks[i].Text
			}

			vecs, err := e.EmbedBatch(ctx, texts)
			if err == nil && len(vecs) != len(texts) {
				err = fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))
			}
			if err != nil {
				slog.Warn("embedding batch failed", "first", chunks[lo].ID, "last", chunks[hi-1].ID, "error", err)
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("chunks %s..%s: %w", chunks[lo].ID, chunks[hi-1].ID, err))
				errsMu.Unlock()
				return nil
			}

			copy(vectors[lo:hi], vecs)
			n := done.Add(int32(hi - lo))
			if opts.OnProgress != nil {
				opts.OnProgress(int(n), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %d of %d batches failed: %w",
			models.ErrEmbeddingFailure, len(errs), (total+opts.BatchSize-1)/opts.BatchSize, errors.Join(errs...))
	}

	dimension, err := checkDimensions(chunks, vectors, e.Dimension())
	if err != nil {
		return nil, err
	}

	for i, v := range vectors {
		vectors[i] = normalize(v)
	}

	slog.Info("index built", "chunks", total, "dimension", dimension, "duration_ms", time.Since(start).Milliseconds())

	return &Index{
		modelID:   e.Model(),
		dimension: dimension,
		chunks:    slices.Clone(chunks),
		vectors:   vectors,
	}, nil
}

// checkDimensions verifies that all vectors share one length. When the
// embedder declares a dimension, that length is required.
func checkDimensions(chunks []models.Chunk, vectors [][]float32, declared int) (int, error) {
	want := declared
	if want <= 0 {
		want = len(vectors[0])
	}
	if want == 0 {
		return 0, fmt.Errorf("%w: embedder returned empty vectors", models.ErrEmbeddingFailure)
	}

	var errs []error
	for i, v := range vectors {
		if len(v) != want {
			errs = append(errs, fmt.Errorf("chunk %s: dimension %d, want %d", chunks[i].ID, len(v), want))
		}
	}
	if len(errs) > 0 {
		return 0, fmt.Errorf("%w: inconsistent dimensionality: %w", models.ErrEmbeddingFailure, errors.Join(errs...))
	}
	return want, nil
}

// Search returns the k chunks most similar to query, best first.
//
// Scores are inner products of unit vectors (cosine similarity). Ties are
// broken by ascending sequence index, then source id, then chunk id, so the
// result for a given index and query is fully deterministic and the result
// for k is always a prefix of the result for any larger k. A k larger than
// the index returns every chunk.
func (idx *Index) Search(ctx context.Context, query string, e embedding.Embedder, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrConfiguration, k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrEmptyQuery
	}
	if e.Model() != idx.modelID {
		return nil, fmt.Errorf("%w: index built with %q, query embedder is %q", models.ErrModelMismatch, idx.modelID, e.Model())
	}

	qv, err := e.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", models.ErrEmbeddingFailure, err)
	}
	if len(qv) != idx.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", models.ErrEmbeddingFailure, len(qv), idx.dimension)
	}
	qv = normalize(qv)

	results := make([]Result, len(idx.chunks))
	for i, v := range idx.vectors {
		results[i] = Result{Chunk: idx.chunks[i], Score: dot(qv, v)}
	}

	slices.SortFunc(results, compareResults)

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func compareResults(a, b Result) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Chunk.SequenceIndex, b.Chunk.SequenceIndex); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Chunk.SourceID, b.Chunk.SourceID); c != 0 {
		return c
	}
	return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// ModelID returns the embedding model the index was built with.
func (idx *Index) ModelID() string {
	return idx.modelID
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Chunks returns a copy of the indexed chunks in build order.
func (idx *Index) Chunks() []models.Chunk {
	return slices.Clone(idx.chunks)
}

// normalize returns a unit-length copy of v. The zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}
