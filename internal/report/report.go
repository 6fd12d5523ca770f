// Package report renders the evaluation artifact as a PDF or Markdown document.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/ragbot/internal/models"
)

const baseTitle = "RAG Application Final Report"

// Format names an output format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a report into bytes.
type Formatter interface {
	Format(r Report) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// New returns the formatter for format.
func New(format Format, fontPath string) (Formatter, error) {
	switch format {
	case FormatPDF, "":
		return NewPDFFormatter(fontPath), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported report format: %s", models.ErrConfiguration, format)
	}
}

// Report holds everything shown in the rendered document.
type Report struct {
	GeneratedAt    time.Time
	LLMModel       string
	EmbeddingModel string
	SourceURLs     []string
	TopK           int
	MemoryWindow   int
	ChunkSize      int
	ChunkOverlap   int

	// Result is nil when no evaluation artifact is available; Problem then
	// explains why.
	Result  *models.EvalResult
	Problem string
}

// WithResult attaches the outcome of loading the evaluation artifact.
// A missing artifact and a corrupted one produce different guidance.
func (r Report) WithResult(result models.EvalResult, err error) Report {
	switch {
	case err == nil:
		r.Result = &result
		r.Problem = ""
	case errors.Is(err, models.ErrArtifactNotFound):
		r.Problem = "No evaluation results found. Run `ragbot eval` to generate them before building the report."
	case errors.Is(err, models.ErrArtifactCorrupted):
		r.Problem = fmt.Sprintf("The evaluation results are corrupted and could not be read (%v). Inspect or regenerate them with `ragbot eval`.", err)
	default:
		r.Problem = fmt.Sprintf("The evaluation results could not be read: %v", err)
	}
	return r
}

type blockKind int

const (
	blockHeading blockKind = iota
	blockParagraph
	blockBullet
	blockMetric
)

type block struct {
	kind  blockKind
	text  string
	value float64
}

// blocks lays out the report independent of the output format.
func (r Report) blocks() []block {
	var out []block
	heading := func(s string) { out = append(out, block{kind: blockHeading, text: s}) }
	para := func(format string, args ...any) {
		out = append(out, block{kind: blockParagraph, text: fmt.Sprintf(format, args...)})
	}
	bullet := func(format string, args ...any) {
		out = append(out, block{kind: blockBullet, text: fmt.Sprintf(format, args...)})
	}
	metric := func(name string, v float64) { out = append(out, block{kind: blockMetric, text: name, value: v}) }

	heading("1. Overview")
	para("A retrieval-augmented generation pipeline over %d research papers. Documents are split into "+
		"overlapping chunks, embedded with %s and searched by cosine similarity; answers are generated "+
		"by %s from the top %d chunks and a %d-exchange conversation window.",
		len(r.SourceURLs), r.EmbeddingModel, r.LLMModel, r.TopK, r.MemoryWindow)

	heading("2. Sources")
	for _, u := range r.SourceURLs {
		bullet("%s", u)
	}

	heading("3. Pipeline")
	bullet("Chunking: %d characters with %d characters of overlap", r.ChunkSize, r.ChunkOverlap)
	bullet("Embedding model: %s", r.EmbeddingModel)
	bullet("Generation model: %s", r.LLMModel)
	bullet("Retrieval: top %d chunks per question", r.TopK)
	bullet("Memory: last %d exchanges", r.MemoryWindow)

	heading("4. Evaluation")
	if r.Result == nil {
		para("%s", r.Problem)
		return out
	}

	res := r.Result
	para("Relevance is a length heuristic (0 for an empty answer, 0.5 under 30 characters, 1 otherwise). "+
		"Context precision and recall are min(1, average context count / 3).")

	heading("4.1 Scores")
	metric("answer_relevancy", res.Scores.AnswerRelevancy)
	metric("faithfulness", res.Scores.Faithfulness)
	metric("context_precision", res.Scores.ContextPrecision)
	metric("context_recall", res.Scores.ContextRecall)

	heading("4.2 Summary")
	bullet("num_questions: %d", res.Summary.NumQuestions)
	metric("avg_relevance_score", res.Summary.AvgRelevanceScore)
	metric("avg_answer_length", res.Summary.AvgAnswerLength)
	metric("avg_context_count", res.Summary.AvgContextCount)

	heading("4.3 Question-Answer Pairs")
	if len(res.Records) == 0 {
		para("No question-answer records found in the evaluation results.")
		return out
	}
	for i, rec := range res.Records {
		para("Q%d: %s", i+1, rec.Question)
		if rec.Error != "" {
			para("Error: %s", rec.Error)
			continue
		}
		para("Answer: %s", rec.Answer)
	}
	return out
}

// Write renders r with f and writes it to path, creating parent directories.
func Write(path string, f Formatter, r Report) error {
	data, err := f.Format(r)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
