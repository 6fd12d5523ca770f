package cli

import (
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/service"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url...]",
	Short: "Download the source PDFs",
	Long: `Download every configured PDF URL into the data directory. Files that
already exist are not downloaded again. Extra URLs may be given as arguments.

Examples:
  ragbot fetch
  ragbot fetch https://arxiv.org/pdf/2302.13971.pdf`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	urls := append(append([]string{}, cfg.PDFURLs...), args...)
	if len(urls) == 0 {
		return fmt.Errorf("no URLs configured (set pdf_urls or pass URLs as arguments)")
	}

	f := service.NewFetcher(cfg.DataDir, nil, service.FetchOptions{
		Attempts: cfg.FetchAttempts,
		Delay:    cfg.RetryDelay,
		Timeout:  cfg.FetchTimeout,
	}, collector, logger)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range f.FetchAll(cmd.Context(), urls) {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", r.URL, r.Err)
		case r.Cached:
			fmt.Fprintf(out, "= %s (already present)\n", r.Path)
		default:
			fmt.Fprintf(out, "✓ %s\n", r.Path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}
