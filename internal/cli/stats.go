package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raphaelgruber/ragbot/internal/eval"
	"github.com/raphaelgruber/ragbot/internal/index"
	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/raphaelgruber/ragbot/internal/service"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show artifact status",
	Long: `Show what has been built so far: chunk set, index and evaluation results.

Pass --stats to any other command to print its timing and token statistics.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Artifacts\n")
	fmt.Fprintf(out, "═══════════════════════════════════════\n")

	if set, err := service.LoadChunkSet(cfg.ChunksPath()); err != nil {
		fmt.Fprintf(out, "Chunk set:  %v\n", err)
	} else {
		fmt.Fprintf(out, "Chunk set:  %d chunks from %d sources (model %s)\n",
			len(set.Chunks), len(set.Sources()), set.EmbeddingModelID)
	}

	if m, err := index.ReadManifest(cfg.IndexPath()); err != nil {
		fmt.Fprintf(out, "Index:      %v\n", err)
	} else {
		fmt.Fprintf(out, "Index:      %d vectors, %d dimensions (model %s, built %s)\n",
			m.Count, m.Dimension, m.EmbeddingModelID, m.CreatedAt.Format("2006-01-02 15:04"))
	}

	if res, err := eval.LoadResult(cfg.EvalResultsPath()); err != nil {
		fmt.Fprintf(out, "Evaluation: %v\n", err)
	} else {
		fmt.Fprintf(out, "Evaluation: %d questions, %d failed, avg relevance %.4f\n",
			res.Summary.NumQuestions, len(res.Failed()), res.Summary.AvgRelevanceScore)
	}
	return nil
}

// printStats prints the in-process pipeline statistics to stderr.
func printStats(s metrics.Snapshot) {
	writeStats(os.Stderr, s)
}

func writeStats(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintf(w, "\nPipeline Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %s\n", s.Uptime.Round(100*time.Millisecond))

	for _, st := range s.Stages {
		fmt.Fprintf(w, "\n%s:\n", st.Op)
		fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %s\n", st.Calls, st.Errors, st.Total.Round(time.Millisecond))
		fmt.Fprintf(w, "  Time: avg %s, min %s, max %s\n",
			st.Mean().Round(time.Millisecond), st.Min.Round(time.Millisecond), st.Max.Round(time.Millisecond))
		if st.InputTokens > 0 || st.OutputTokens > 0 {
			fmt.Fprintf(w, "  Tokens: %d in, %d out\n", st.InputTokens, st.OutputTokens)
		}
	}
}
