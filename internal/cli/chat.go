package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/raphaelgruber/ragbot/internal/service"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the bot",
	Long: `Start an interactive conversation. The bot remembers the last
memory_window exchanges. Type "reset" to forget the conversation,
"exit" or "quit" to leave.`,
	Args: cobra.NoArgs,
	Run:  runChat,
}

var memoryTestName string

var memoryTestCmd = &cobra.Command{
	Use:   "memory-test",
	Short: "Check that the bot remembers earlier turns",
	Long: `Run a scripted three-turn conversation: introduce a name, ask an
unrelated question, then ask for the name again.`,
	Args: cobra.NoArgs,
	RunE: runMemoryTest,
}

func init() {
	memoryTestCmd.Flags().StringVar(&memoryTestName, "name", "Ashish", "name to introduce")
}

func runChat(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	bot, err := newBot(ctx)
	if err != nil {
		exitWithError("%v", err)
	}

	out := cmd.OutOrStdout()
	theme := defaultTheme
	fmt.Fprintln(out, theme.statusStyle().Render("RAG chat over the paper corpus"))
	fmt.Fprintln(out, theme.hintStyle().Render(fmt.Sprintf("session %s · type reset to clear, exit or quit to leave", bot.SessionID())))
	fmt.Fprintln(out)

	chatLoop(ctx, bot, cmd.InOrStdin(), out, theme)
}

// chatLoop reads questions until EOF or an exit command. A failed turn prints
// a diagnostic and the loop continues.
func chatLoop(ctx context.Context, bot *service.Bot, in io.Reader, out io.Writer, theme Theme) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, theme.userStyle().Render("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, theme.hintStyle().Render("Goodbye!"))
			return
		case "reset":
			bot.Reset()
			fmt.Fprintln(out, theme.hintStyle().Render("Conversation cleared."))
			continue
		}

		ans, err := bot.Answer(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintln(out, theme.errorStyle().Render("Error: "+diagnose(err)))
			continue
		}
		fmt.Fprintf(out, "%s%s\n\n", theme.botStyle().Render("Bot: "), ans.Text)
	}
}

// diagnose shortens err into a hint for the user.
func diagnose(err error) string {
	switch {
	case errors.Is(err, models.ErrTimeout):
		return "the model took too long to answer, try again"
	case errors.Is(err, models.ErrRateLimited):
		return "the model provider is rate limiting requests, wait a moment and try again"
	case errors.Is(err, models.ErrEmptyQuery):
		return "please type a question"
	case errors.Is(err, models.ErrEmbeddingFailure):
		return fmt.Sprintf("could not embed the question: %v", err)
	case errors.Is(err, models.ErrGenerationFailure):
		return fmt.Sprintf("the model failed to answer: %v", err)
	default:
		return err.Error()
	}
}

func runMemoryTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bot, err := newBot(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	theme := defaultTheme
	for _, q := range service.MemoryTestScript(memoryTestName) {
		fmt.Fprintf(out, "%s%s\n", theme.userStyle().Render("You: "), q)
		ans, err := bot.Answer(ctx, q)
		if err != nil {
			return fmt.Errorf("memory test: %w", err)
		}
		fmt.Fprintf(out, "%s%s\n\n", theme.botStyle().Render("Bot: "), ans.Text)
	}

	fmt.Fprintf(out, "Memory holds %d turns (window %d exchanges)\n", bot.Memory().Len(), bot.Memory().Size())
	if !strings.Contains(bot.Memory().Render(), memoryTestName) {
		return fmt.Errorf("memory test: %q not found in conversation history", memoryTestName)
	}
	return nil
}
