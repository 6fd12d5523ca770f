package cli

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/ragbot/internal/eval"
	"github.com/raphaelgruber/ragbot/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportFormat string
	reportFont   string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the evaluation results as a report",
	Long: `Render the evaluation results into a PDF (default) or Markdown report.
A report is still produced when no results exist yet; it then explains how to
create them.

Examples:
  ragbot report
  ragbot report --format markdown
  ragbot report --font ttf/DejaVuSans.ttf`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "pdf", "output format: pdf or markdown")
	reportCmd.Flags().StringVar(&reportFont, "font", "", "UTF-8 TTF font for the PDF")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output path (default report_dir/report.<ext>)")
}

func runReport(cmd *cobra.Command, args []string) error {
	f, err := report.New(report.Format(reportFormat), reportFont)
	if err != nil {
		return err
	}

	result, loadErr := eval.LoadResult(cfg.EvalResultsPath())
	if loadErr != nil {
		logger.Warn("evaluation results unavailable", "error", loadErr)
	}

	r := report.Report{
		GeneratedAt:    time.Now(),
		LLMModel:       cfg.LLMModel,
		EmbeddingModel: cfg.EmbedModel,
		SourceURLs:     cfg.PDFURLs,
		TopK:           cfg.TopK,
		MemoryWindow:   cfg.MemoryWindow,
		ChunkSize:      cfg.Chunk.Size,
		ChunkOverlap:   cfg.Chunk.Overlap,
	}.WithResult(result, loadErr)

	path := reportOutput
	if path == "" {
		path = cfg.ReportPath(reportFormat)
	}
	if err := report.Write(path, f, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	return nil
}
