// Package service wires chunking, retrieval, memory and generation into the
// operations the CLI exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/ragbot/internal/llm"
	"github.com/raphaelgruber/ragbot/internal/memory"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/tmc/langchaingo/prompts"
)

const promptTemplate = `
You are a helpful RAG assistant.

Conversation history:
{{.chat_history}}

Relevant paper context:
{{.context}}

User: {{.user_input}}
Assistant:`

// Bot answers questions grounded in retrieved chunks while keeping a
// sliding window of the conversation.
type Bot struct {
	search    *SearchService
	generator llm.Generator
	memory    *memory.Window
	prompt    prompts.PromptTemplate
	k         int
	timeout   time.Duration
	sessionID string
	logger    *slog.Logger

	// mu serializes Answer so retrieval, generation and the memory update of
	// one turn are not interleaved with another.
	mu sync.Mutex
}

// BotConfig holds the per-session settings of a Bot.
type BotConfig struct {
	// TopK is the number of chunks retrieved per question.
	TopK int
	// MemoryWindow is the number of exchanges kept in history.
	MemoryWindow int
	// GenerateTimeout bounds each generation call; 0 means no limit.
	GenerateTimeout time.Duration
}

// NewBot creates a bot with a fresh conversation session.
func NewBot(search *SearchService, generator llm.Generator, cfg BotConfig, logger *slog.Logger) (*Bot, error) {
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrConfiguration, cfg.TopK)
	}
	mem, err := memory.New(cfg.MemoryWindow)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessionID := uuid.NewString()
	return &Bot{
		search:    search,
		generator: generator,
		memory:    mem,
		prompt:    prompts.NewPromptTemplate(promptTemplate, []string{"chat_history", "context", "user_input"}),
		k:         cfg.TopK,
		timeout:   cfg.GenerateTimeout,
		sessionID: sessionID,
		logger:    logger.With("session", sessionID),
	}, nil
}

// SessionID identifies the conversation held by this bot.
func (b *Bot) SessionID() string {
	return b.sessionID
}

// Memory exposes the conversation window.
func (b *Bot) Memory() *memory.Window {
	return b.memory
}

// Reset clears the conversation history.
func (b *Bot) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memory.Reset()
	b.logger.Debug("conversation reset")
}

// Answer retrieves context for query, generates one answer and records the
// exchange in memory. When generation fails memory is left untouched.
func (b *Bot) Answer(ctx context.Context, query string) (models.Answer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	results, err := b.search.Search(ctx, query, b.k)
	if err != nil {
		return models.Answer{}, err
	}
	used := contextTexts(results)

	prompt, err := b.prompt.Format(map[string]any{
		"chat_history": b.memory.Render(),
		"context":      buildSearchContext(used),
		"user_input":   query,
	})
	if err != nil {
		return models.Answer{}, fmt.Errorf("render prompt: %w", err)
	}

	text, err := b.generate(ctx, prompt)
	if err != nil {
		b.logger.Warn("generation failed", "error", err)
		return models.Answer{}, err
	}

	text = strings.TrimSpace(text)
	b.memory.AppendExchange(query, text)
	b.logger.Debug("answered", "contexts", len(used), "turns", b.memory.Len(), "duration_ms", time.Since(start).Milliseconds())

	return models.Answer{Text: text, UsedContext: used}, nil
}

func (b *Bot) generate(ctx context.Context, prompt string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	text, err := b.generator.Generate(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %w: %w", models.ErrGenerationFailure, models.ErrTimeout, err)
	}
	return "", fmt.Errorf("%w: %w", models.ErrGenerationFailure, err)
}

// MemoryTestScript is the scripted conversation that checks the bot recalls
// something said two turns earlier.
func MemoryTestScript(name string) []string {
	return []string{
		fmt.Sprintf("My name is %s, remember this.", name),
		"What is self-attention in Transformers?",
		"And what is my name?",
	}
}
