package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/index"
	"github.com/raphaelgruber/ragbot/internal/metrics"
)

// SearchService runs similarity search against a built index.
type SearchService struct {
	index    *index.Index
	embedder embedding.Embedder
	metrics  *metrics.Collector
}

// NewSearchService creates a new search service. collector may be nil.
func NewSearchService(idx *index.Index, embedder embedding.Embedder, collector *metrics.Collector) *SearchService {
	return &SearchService{
		index:    idx,
		embedder: embedder,
		metrics:  collector,
	}
}

// Search returns the k chunks most similar to query.
func (s *SearchService) Search(ctx context.Context, query string, k int) ([]index.Result, error) {
	var results []index.Result
	err := s.metrics.Time(metrics.OpIndexSearch, func() error {
		var err error
		results, err = s.index.Search(ctx, query, s.embedder, k)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// contextTexts returns the ranked chunk texts with adjacent duplicates collapsed.
func contextTexts(results []index.Result) []string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		if n := len(texts); n > 0 && texts[n-1] == r.Chunk.Text {
			continue
		}
		texts = append(texts, r.Chunk.Text)
	}
	return texts
}

// buildSearchContext joins context texts into the block handed to the model.
func buildSearchContext(texts []string) string {
	return strings.Join(texts, "\n\n")
}
