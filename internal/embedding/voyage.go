package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/raphaelgruber/ragbot/internal/models"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// DefaultVoyageDimension is the dimension for voyage-3.
	DefaultVoyageDimension = 1024

	// VoyageAPIEndpoint is the Voyage AI embeddings endpoint.
	VoyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"

	// Voyage tunes vectors for the side of the search they are used on.
	voyageQuery    = "query"
	voyageDocument = "document"
)

// VoyageOptions configures a VoyageClient. Zero values use the defaults.
type VoyageOptions struct {
	Model     string
	Dimension int
	Endpoint  string
	Client    *http.Client

	// Attempts per request; throttles, 5xx and transport errors are retried.
	Attempts uint
	Delay    time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// VoyageClient embeds chunks and queries with the Voyage AI REST API.
type VoyageClient struct {
	apiKey string
	opts   VoyageOptions
}

// Compile-time check that VoyageClient implements Embedder.
var _ Embedder = (*VoyageClient)(nil)

// NewVoyageClient creates a Voyage AI embedder.
func NewVoyageClient(apiKey string, opts VoyageOptions) (*VoyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: voyage embeddings need VOYAGE_API_KEY", models.ErrConfiguration)
	}
	opts.Model = orDefault(opts.Model, DefaultVoyageModel)
	opts.Dimension = orDefaultInt(opts.Dimension, DefaultVoyageDimension)
	opts.Endpoint = orDefault(opts.Endpoint, VoyageAPIEndpoint)
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	return &VoyageClient{apiKey: apiKey, opts: opts}, nil
}

// Model returns the embedding model name stamped on chunk sets and indexes.
func (c *VoyageClient) Model() string {
	return c.opts.Model
}

// Dimension returns the vector size.
func (c *VoyageClient) Dimension() int {
	return c.opts.Dimension
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed embeds a search query.
func (c *VoyageClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, voyageQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds document chunks, returned in input order.
func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.embed(ctx, texts, voyageDocument)
}

func (c *VoyageClient) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	body, err := json.Marshal(voyageRequest{Input: texts, Model: c.opts.Model, InputType: inputType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var vecs [][]float32
	err = retry.Do(func() error {
		var err error
		vecs, err = c.post(ctx, body, len(texts))
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("voyage: %w", err)
	}
	return vecs, nil
}

// post sends one request. Client errors other than 429 and malformed
// responses are unrecoverable.
func (c *VoyageClient) post(ctx context.Context, body []byte, want int) ([][]float32, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.opts.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", models.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, retry.Unrecoverable(fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var out voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
	}
	vecs, err := c.order(out, want)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	return vecs, nil
}

// order places each returned vector at its input index.
func (c *VoyageClient) order(resp voyageResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingFailure, len(resp.Data), want)
	}
	vecs := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want || vecs[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad vector index %d", models.ErrEmbeddingFailure, d.Index)
		}
		if len(d.Embedding) != c.opts.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				models.ErrEmbeddingFailure, d.Index, len(d.Embedding), c.opts.Dimension)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
