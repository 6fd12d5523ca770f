// Package eval runs a fixed question set through the bot and scores the
// answers with deterministic heuristics.
//
// The relevance score is a length bucket, not a semantic measure: 0 for an
// empty answer, 0.5 below shortAnswerRunes, 1 otherwise. Context precision and
// recall are min(1, avg_context_count/3). Both are proxies kept for the
// field names the report consumes.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/raphaelgruber/ragbot/internal/llm"
	"github.com/raphaelgruber/ragbot/internal/models"
)

const (
	shortAnswerRunes = 30
	contextTarget    = 3.0
)

// AnswerFunc answers one question. Evaluation calls it once per question,
// plus retries for retryable failures.
type AnswerFunc func(ctx context.Context, question string) (models.Answer, error)

// Options configures an evaluation run.
type Options struct {
	// Attempts per question; failures are only retried when models.IsRetryable.
	Attempts uint
	// Delay between attempts.
	Delay time.Duration
	// OnRecord is called after each question with its position and record.
	OnRecord func(i int, rec models.Record)
	Logger   *slog.Logger
}

// Evaluate asks every question in order and aggregates the record metrics.
//
// A failed question is kept as a record with Error set and zero metrics, so it
// still counts towards the averages. Fatal provider errors (llm.ErrFatalAPI)
// and context cancellation stop the batch; the records gathered so far are
// returned with the error.
func Evaluate(ctx context.Context, questions []string, answer AnswerFunc, opts Options) (models.EvalResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 1
	}

	records := make([]models.Record, 0, len(questions))
	for i, q := range questions {
		logger.Info("evaluating", "question", i+1, "of", len(questions))

		var ans models.Answer
		err := retry.Do(func() error {
			var err error
			ans, err = answer(ctx, q)
			return err
		},
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.Delay(opts.Delay),
			retry.RetryIf(models.IsRetryable),
			retry.LastErrorOnly(true),
		)

		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
				return Aggregate(records), fmt.Errorf("question %d: %w", i+1, err)
			}
			logger.Warn("question failed", "question", i+1, "error", err)
			rec := NewRecord(q, models.Answer{})
			rec.Error = err.Error()
			records = append(records, rec)
		} else {
			records = append(records, NewRecord(q, ans))
		}

		if opts.OnRecord != nil {
			opts.OnRecord(i, records[len(records)-1])
		}
	}

	return Aggregate(records), nil
}

// NewRecord scores a single answer.
func NewRecord(question string, ans models.Answer) models.Record {
	text := strings.TrimSpace(ans.Text)
	contexts := ans.UsedContext
	if contexts == nil {
		contexts = []string{}
	}
	return models.Record{
		Question: question,
		Answer:   text,
		Contexts: contexts,
		Metrics: models.RecordMetrics{
			RelevanceScore: RelevanceScore(text),
			AnswerLength:   utf8.RuneCountInString(text),
			ContextCount:   distinct(contexts),
		},
	}
}

// RelevanceScore buckets an answer by trimmed length.
func RelevanceScore(answer string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(answer))
	switch {
	case n == 0:
		return 0
	case n < shortAnswerRunes:
		return 0.5
	default:
		return 1
	}
}

func distinct(texts []string) int {
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		seen[t] = struct{}{}
	}
	return len(seen)
}

// Aggregate computes the summary and derived scores over records.
// Every mean is 0 for an empty record set.
func Aggregate(records []models.Record) models.EvalResult {
	if records == nil {
		records = []models.Record{}
	}

	var rel, length, ctxs float64
	for _, r := range records {
		rel += r.Metrics.RelevanceScore
		length += float64(r.Metrics.AnswerLength)
		ctxs += float64(r.Metrics.ContextCount)
	}

	summary := models.Summary{NumQuestions: len(records)}
	if n := float64(len(records)); n > 0 {
		summary.AvgRelevanceScore = rel / n
		summary.AvgAnswerLength = length / n
		summary.AvgContextCount = ctxs / n
	}

	contextProxy := min(1.0, summary.AvgContextCount/contextTarget)
	return models.EvalResult{
		Scores: models.Scores{
			AnswerRelevancy:  summary.AvgRelevanceScore,
			Faithfulness:     summary.AvgRelevanceScore,
			ContextPrecision: contextProxy,
			ContextRecall:    contextProxy,
		},
		Summary: summary,
		Records: records,
	}
}

// WriteResult writes the evaluation artifact as indented JSON.
func WriteResult(path string, result models.EvalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode eval results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write eval results: %w", err)
	}
	return nil
}

// LoadResult reads the evaluation artifact.
func LoadResult(path string) (models.EvalResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.EvalResult{}, fmt.Errorf("%w: eval results %s", models.ErrArtifactNotFound, path)
	}
	if err != nil {
		return models.EvalResult{}, fmt.Errorf("read eval results: %w", err)
	}

	var result models.EvalResult
	if err := json.Unmarshal(data, &result); err != nil {
		return models.EvalResult{}, fmt.Errorf("%w: decode eval results %s: %w", models.ErrArtifactCorrupted, path, err)
	}
	if result.Summary.NumQuestions != len(result.Records) {
		return models.EvalResult{}, fmt.Errorf("%w: eval results %s: num_questions %d but %d records",
			models.ErrArtifactCorrupted, path, result.Summary.NumQuestions, len(result.Records))
	}
	return result, nil
}
