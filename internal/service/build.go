package service

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/index"
	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/raphaelgruber/ragbot/internal/models"
)

// BuildIndex embeds a chunk set and persists the index to dir.
//
// The chunk set must have been produced for the embedder's model; a different
// model id is rejected before any embedding call is made.
func BuildIndex(ctx context.Context, set models.ChunkSet, e embedding.Embedder, dir string, opts index.BuildOptions, collector *metrics.Collector) (*index.Index, error) {
	if set.EmbeddingModelID != e.Model() {
		return nil, fmt.Errorf("%w: chunk set was prepared for %q, embedder is %q (re-run ingest)",
			models.ErrModelMismatch, set.EmbeddingModelID, e.Model())
	}

	var idx *index.Index
	err := collector.Time(metrics.OpIndexBuild, func() error {
		var err error
		idx, err = index.Build(ctx, set.Chunks, e, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := idx.Persist(dir); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return idx, nil
}
