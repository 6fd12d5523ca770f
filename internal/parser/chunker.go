// Package parser turns raw documents into overlapping chunks with provenance.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/raphaelgruber/ragbot/internal/models"
)

// ChunkConfig defines chunking parameters. Sizes are measured in runes.
type ChunkConfig struct {
	// Size is the maximum chunk length.
	Size int `yaml:"size" env:"SIZE"`
	// Overlap is the number of runes shared between adjacent chunks.
	Overlap int `yaml:"overlap" env:"OVERLAP"`
}

// DefaultChunkConfig returns the defaults used for the paper corpus.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 150,
	}
}

// Validate checks that 0 < Overlap < Size.
func (c ChunkConfig) Validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Size))
	}
	if c.Overlap <= 0 {
		errs = append(errs, fmt.Errorf("chunk overlap must be positive, got %d", c.Overlap))
	}
	if c.Size > 0 && c.Overlap >= c.Size {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Overlap, c.Size))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// separatorTiers lists boundaries from coarsest to finest.
// A chunk is cut after the last separator of the coarsest tier that fits.
var separatorTiers = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "? ", "! "},
	{" ", "\t"},
}

// ChunkText splits text into ordered chunks of at most cfg.Size runes.
//
// Chunks are contiguous slices of the input: every rune up to the last
// non-space rune belongs to at least one chunk, and the span of chunk i+1
// starts at most cfg.Overlap runes before the end of chunk i. Trailing
// whitespace is not chunked.
func ChunkText(text, sourceID string, cfg ChunkConfig) ([]models.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, sourceID)
	}

	runes := []rune(strings.TrimRightFunc(text, unicode.IsSpace))
	n := len(runes)

	var chunks []models.Chunk
	start := 0
	for {
		end := n
		if n-start > cfg.Size {
			end = findBreak(runes, start, cfg)
		}

		seq := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:            models.ChunkID(sourceID, seq),
			Text:          string(runes[start:end]),
			SourceID:      sourceID,
			SequenceIndex: seq,
			CharSpan:      models.Span{Start: start, End: end},
		})

		if end >= n {
			break
		}
		start = overlapStart(runes, end, cfg.Overlap)
	}

	return chunks, nil
}

// findBreak returns the exclusive end of the chunk starting at start.
// The end always lies in (start+overlap, start+size] so the next chunk advances.
func findBreak(runes []rune, start int, cfg ChunkConfig) int {
	hi := start + cfg.Size
	lo := start + cfg.Overlap + 1

	for _, tier := range separatorTiers {
		for b := hi; b >= lo; b-- {
			if endsWithAny(runes, b, tier) {
				return b
			}
		}
	}

	// No natural boundary: hard cut.
	return hi
}

// endsWithAny reports whether runes[:b] ends with one of seps.
func endsWithAny(runes []rune, b int, seps []string) bool {
	for _, sep := range seps {
		sr := []rune(sep)
		if b < len(sr) {
			continue
		}
		match := true
		for i, r := range sr {
			if runes[b-len(sr)+i] != r {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// overlapStart picks where the next chunk begins: the first word start in
// [end-overlap, end), or end-overlap when the window holds no word start.
func overlapStart(runes []rune, end, overlap int) int {
	lo := end - overlap
	for i := lo; i < end; i++ {
		if isWordStart(runes, i) {
			return i
		}
	}
	return lo
}

func isWordStart(runes []rune, i int) bool {
	if unicode.IsSpace(runes[i]) {
		return false
	}
	return i == 0 || unicode.IsSpace(runes[i-1])
}
