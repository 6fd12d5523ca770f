package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/raphaelgruber/ragbot/internal/models"
)

// DefaultQuestions covers the five papers of the default corpus.
var DefaultQuestions = []string{
	"What is self-attention and why does the Transformer rely on it?",
	"How is the encoder-decoder architecture of the Transformer structured?",
	"Why does the Transformer need positional encodings, and how are they computed?",
	"What are the two pre-training objectives used by BERT?",
	"How was GPT-3 trained, and what is meant by few-shot learning?",
	"What is multi-head attention and what does it add over single-head attention?",
	"Which changes to BERT's pre-training does RoBERTa make?",
	"How does T5 cast every NLP task into a text-to-text format?",
	"What limitations of large language models do these papers discuss?",
	"How do BERT and GPT-3 differ in the way they use context?",
}

// LoadQuestions reads a JSON array of question strings. Blank entries are dropped.
func LoadQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: questions file %s", models.ErrArtifactNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: questions file %s must be a JSON array of strings: %w", models.ErrConfiguration, path, err)
	}

	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	return questions, nil
}
