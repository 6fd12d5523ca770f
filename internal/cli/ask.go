package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	askShowContext bool
	askOutputFile  string
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a single question",
	Long: `Ask one question and print the answer. Runs in a fresh conversation.

Examples:
  ragbot ask "What is self-attention?"
  ragbot ask "How is BERT pre-trained?" --context
  ragbot ask "Summarise T5" -o answer.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowContext, "context", false, "also print the retrieved context")
	askCmd.Flags().StringVarP(&askOutputFile, "output", "o", "", "write answer to file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bot, err := newBot(ctx)
	if err != nil {
		return err
	}

	ans, err := bot.Answer(ctx, args[0])
	if err != nil {
		return err
	}

	if askOutputFile != "" {
		if err := os.WriteFile(askOutputFile, []byte(ans.Text+"\n"), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote answer to %s\n", askOutputFile)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
	}

	if askShowContext {
		fmt.Fprintf(cmd.OutOrStdout(), "\nContext (%d chunks):\n", len(ans.UsedContext))
		for i, c := range ans.UsedContext {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, truncate(c, 200))
		}
	}
	return nil
}
