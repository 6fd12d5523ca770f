package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/ragbot/internal/embedding"
	"github.com/raphaelgruber/ragbot/internal/index"
	"github.com/raphaelgruber/ragbot/internal/llm"
	"github.com/raphaelgruber/ragbot/internal/service"
)

// newEmbedder creates the configured embedder with metrics. Query caching is
// only enabled when cache is true; build calls embed every chunk once.
func newEmbedder(ctx context.Context, cache bool) (embedding.Embedder, error) {
	ec := cfg.EmbeddingConfig()
	if !cache {
		ec.CacheTTL = 0
	}
	e, err := embedding.New(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	return embedding.WithMetrics(e, collector), nil
}

// loadSearch loads the persisted index and pairs it with a query embedder.
func loadSearch(ctx context.Context) (*service.SearchService, error) {
	e, err := newEmbedder(ctx, true)
	if err != nil {
		return nil, err
	}
	idx, err := index.Load(cfg.IndexPath(), e.Model())
	if err != nil {
		return nil, fmt.Errorf("load index (run `ragbot build` first): %w", err)
	}
	logger.Debug("index loaded", "chunks", idx.Len(), "model", idx.ModelID(), "dimension", idx.Dimension())
	return service.NewSearchService(idx, e, collector), nil
}

// newBot builds a bot with a fresh conversation session.
func newBot(ctx context.Context) (*service.Bot, error) {
	search, err := loadSearch(ctx)
	if err != nil {
		return nil, err
	}
	model, err := llm.NewModel(ctx, cfg, llm.WithMetrics(collector))
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	return service.NewBot(search, model, service.BotConfig{
		TopK:            cfg.TopK,
		MemoryWindow:    cfg.MemoryWindow,
		GenerateTimeout: cfg.GenerateTimeout,
	}, logger)
}
