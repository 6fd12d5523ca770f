package cli

import (
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestPreview   int
	ingestRecursive bool
	ingestDir       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract and chunk the documents",
	Long: `Extract text from every PDF, Markdown and text file in the data directory,
split it into overlapping chunks and write the chunk set to the artifacts
directory. The chunk set records the embedding model it is meant for.

Examples:
  ragbot ingest
  ragbot ingest --preview 3
  ragbot ingest --dir ./papers -r`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestPreview, "preview", 0, "print the first N chunks")
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "include subdirectories")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "document directory (default data_dir)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := newEmbedder(ctx, false)
	if err != nil {
		return err
	}

	svc, err := service.NewIngestService(cfg.Chunk, e.Model(), logger)
	if err != nil {
		return err
	}

	dir := ingestDir
	if dir == "" {
		dir = cfg.DataDir
	}

	set, res, err := svc.IngestDirectory(ctx, dir, service.IngestOptions{Recursive: ingestRecursive})
	if res != nil {
		printIngestResult(cmd, res)
	}
	if err != nil {
		return err
	}

	if err := service.SaveChunkSet(cfg.ChunksPath(), set); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d chunks for model %s to %s\n", len(set.Chunks), set.EmbeddingModelID, cfg.ChunksPath())

	if ingestPreview > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		for _, line := range service.Preview(set, ingestPreview, 200) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, r *service.IngestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Files processed: %d\n", r.FilesProcessed)
	fmt.Fprintf(out, "  Files skipped:   %d\n", r.FilesSkipped)
	fmt.Fprintf(out, "  Chunks created:  %d\n", r.ChunksCreated)
	if len(r.Errors) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  • %s\n", e)
		}
	}
}
