package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks most similar to a query",
	Long: `Search the index without generating an answer. Useful to check what
context the bot would see.

Examples:
  ragbot search "positional encoding"
  ragbot search "masked language model" -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "number of chunks (default top_k)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	search, err := loadSearch(ctx)
	if err != nil {
		return err
	}

	k := searchLimit
	if k == 0 {
		k = cfg.TopK
	}
	results, err := search.Search(ctx, args[0], k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%s] score %.4f\n", i+1, r.Chunk.ID, r.Score)
		fmt.Fprintf(out, "   %s\n\n", truncate(strings.Join(strings.Fields(r.Chunk.Text), " "), 300))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
