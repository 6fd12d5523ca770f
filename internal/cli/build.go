package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/index"
	"github.com/raphaelgruber/ragbot/internal/service"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the chunk set into a searchable index",
	Long: `Read the chunk set written by ingest, embed every chunk with the configured
embedding model and persist the index. The chunk set must have been produced
for the same embedding model.

Shows a progress bar when attached to a terminal.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	set, err := service.LoadChunkSet(cfg.ChunksPath())
	if err != nil {
		return err
	}

	e, err := newEmbedder(ctx, false)
	if err != nil {
		return err
	}

	var idx *index.Index
	err = runWithProgress(ctx, "Embedding chunks", len(set.Chunks), func(ctx context.Context, onProgress func(done, total int)) error {
		var buildErr error
		idx, buildErr = service.BuildIndex(ctx, set, e, cfg.IndexPath(), index.BuildOptions{
			BatchSize:   cfg.EmbedBatchSize,
			Concurrency: cfg.EmbedConcurrency,
			OnProgress:  onProgress,
		}, collector)
		return buildErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks (%s, %d dimensions) into %s\n",
		idx.Len(), idx.ModelID(), idx.Dimension(), cfg.IndexPath())
	return nil
}
