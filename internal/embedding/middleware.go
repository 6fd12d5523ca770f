package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/raphaelgruber/ragbot/internal/models"
)

// timeoutEmbedder bounds every call with a deadline.
type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// WithTimeout wraps next so each call fails with models.ErrTimeout once d elapses.
func WithTimeout(next Embedder, d time.Duration) Embedder {
	return &timeoutEmbedder{next: next, timeout: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	v, err := t.next.Embed(ctx, text)
	return v, classifyTimeout(ctx, err)
}

func (t *timeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	v, err := t.next.EmbedBatch(ctx, texts)
	return v, classifyTimeout(ctx, err)
}

func (t *timeoutEmbedder) Model() string  { return t.next.Model() }
func (t *timeoutEmbedder) Dimension() int { return t.next.Dimension() }

// classifyTimeout marks errors caused by the call deadline as retryable timeouts.
func classifyTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	return err
}

// meteredEmbedder records call latency in a metrics collector.
type meteredEmbedder struct {
	next      Embedder
	collector *metrics.Collector
}

// WithMetrics wraps next so every call is timed under metrics.OpEmbedding.
func WithMetrics(next Embedder, c *metrics.Collector) Embedder {
	if c == nil {
		return next
	}
	return &meteredEmbedder{next: next, collector: c}
}

func (m *meteredEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := m.next.Embed(ctx, text)
	m.collector.Observe(metrics.OpEmbedding, time.Since(start), err)
	return v, err
}

func (m *meteredEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	v, err := m.next.EmbedBatch(ctx, texts)
	m.collector.Observe(metrics.OpEmbedding, time.Since(start), err)
	return v, err
}

func (m *meteredEmbedder) Model() string  { return m.next.Model() }
func (m *meteredEmbedder) Dimension() int { return m.next.Dimension() }
