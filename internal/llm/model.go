// Package llm provides text generation over langchaingo providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/ragbot/internal/config"
	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrFatalAPI marks provider failures that no retry will fix (billing, auth, quota).
var ErrFatalAPI = errors.New("fatal API error")

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Model wraps a langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

// Option configures a Model.
type Option func(*Model)

// WithMetrics records generation timings and token usage.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Model) { m.metrics = c }
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, opts ...Option) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		client, clientErr := newBedrockClient(ctx, cfg.AWSRegion)
		if clientErr != nil {
			return nil, clientErr
		}
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return FromLLM(model, cfg.LLMModel, opts...), nil
}

// FromLLM wraps an existing langchaingo model.
func FromLLM(model llms.Model, name string, opts ...Option) *Model {
	m := &Model{llm: model, modelName: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// Generate sends prompt as a single human message and returns the first choice.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	if err == nil && (response == nil || len(response.Choices) == 0) {
		err = errors.New("no response choices")
	}
	m.metrics.Observe(metrics.OpGenerate, time.Since(start), err)
	if err != nil {
		return "", classifyAPIError(fmt.Errorf("generate: %w", err))
	}

	choice := response.Choices[0]
	m.metrics.AddTokens(metrics.OpGenerate,
		tokenCount(choice.GenerationInfo, "PromptTokens", "InputTokens", "prompt_eval_count"),
		tokenCount(choice.GenerationInfo, "CompletionTokens", "OutputTokens", "eval_count"),
	)
	return choice.Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenCount returns the first numeric value found under keys. Providers name
// usage fields differently.
func tokenCount(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

var (
	fatalMarkers = []string{
		"credit balance",
		"insufficient_quota",
		"quota",
		"billing",
		"invalid api key",
		"authentication",
		"unauthorized",
		"forbidden",
	}
	rateLimitMarkers = []string{
		"rate limit",
		"rate_limit",
		"too many requests",
	}

	// statusRe matches an HTTP status only where the message names it as one,
	// e.g. "status code: 401" or "HTTP 429".
	statusRe = regexp.MustCompile(`(?i)\b(?:status(?:\s+code)?|http)\s*:?\s*(\d{3})\b`)
)

func statusCode(msg string) string {
	if m := statusRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func containsAny(msg string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isFatalAPIError reports whether err looks like a billing, auth or quota failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch statusCode(msg) {
	case "401", "403":
		return true
	}
	return containsAny(msg, fatalMarkers)
}

// isRateLimited reports whether err is a provider throttle (HTTP 429).
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return statusCode(msg) == "429" || containsAny(msg, rateLimitMarkers)
}

// classifyAPIError tags fatal provider errors with ErrFatalAPI and throttles
// with models.ErrRateLimited. Other errors are returned unchanged. An
// exhausted quota is fatal even when sent as a 429.
func classifyAPIError(err error) error {
	switch {
	case isFatalAPIError(err):
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	case isRateLimited(err):
		return fmt.Errorf("%w: %w", models.ErrRateLimited, err)
	default:
		return err
	}
}
