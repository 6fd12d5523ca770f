package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/eval"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/spf13/cobra"
)

var evalQuestionsFile string

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Answer the evaluation questions and score the answers",
	Long: `Ask every question from the questions file in one continuous conversation
and write scores, summary and per-question records to the artifacts
directory. Without a questions file a built-in set of ten questions is used.

Timeouts are retried up to eval_attempts times; other failures are recorded
on the question and the run continues.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalQuestionsFile, "questions", "q", "", "questions JSON file (default questions_file)")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	path := evalQuestionsFile
	if path == "" {
		path = cfg.QuestionsFile
	}
	questions, err := eval.LoadQuestions(path)
	switch {
	case errors.Is(err, models.ErrArtifactNotFound) && evalQuestionsFile == "":
		logger.Warn("questions file not found, using built-in questions", "file", path)
		questions = eval.DefaultQuestions
	case err != nil:
		return err
	}

	bot, err := newBot(ctx)
	if err != nil {
		return err
	}

	result, runErr := eval.Evaluate(ctx, questions, bot.Answer, eval.Options{
		Attempts: cfg.EvalAttempts,
		Delay:    cfg.RetryDelay,
		Logger:   logger,
		OnRecord: func(i int, rec models.Record) {
			status := defaultTheme.completedStyle().Render("✓")
			if rec.Error != "" {
				status = defaultTheme.errorStyle().Render("✗")
			}
			fmt.Fprintf(out, "%s [%d/%d] %s\n", status, i+1, len(questions), rec.Question)
		},
	})

	// partial results are still written so a fatal error leaves a trace
	if err := eval.WriteResult(cfg.EvalResultsPath(), result); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("evaluation stopped after %d questions: %w", len(result.Records), runErr)
	}

	fmt.Fprintf(out, "\nScores\n")
	fmt.Fprintf(out, "  answer_relevancy:  %.4f\n", result.Scores.AnswerRelevancy)
	fmt.Fprintf(out, "  faithfulness:      %.4f\n", result.Scores.Faithfulness)
	fmt.Fprintf(out, "  context_precision: %.4f\n", result.Scores.ContextPrecision)
	fmt.Fprintf(out, "  context_recall:    %.4f\n", result.Scores.ContextRecall)
	if failed := result.Failed(); len(failed) > 0 {
		fmt.Fprintf(out, "\n%d of %d questions failed\n", len(failed), len(result.Records))
	}
	fmt.Fprintf(out, "\nSaved evaluation results to %s\n", cfg.EvalResultsPath())
	return nil
}
