package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hashing embedder.
const DefaultHashDimension = 256

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "with": {},
}

// HashingEmbedder maps text to vectors with signed feature hashing of word
// unigrams and bigrams. It needs no model server, is deterministic, and is
// meant for offline runs and tests.
type HashingEmbedder struct {
	dimension int
}

// Compile-time check that HashingEmbedder implements Embedder.
var _ Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates a hashing embedder. dimension 0 uses DefaultHashDimension.
func NewHashingEmbedder(dimension int) (*HashingEmbedder, error) {
	if dimension < 0 {
		return nil, fmt.Errorf("invalid hash dimension: %d", dimension)
	}
	return &HashingEmbedder{dimension: orDefaultInt(dimension, DefaultHashDimension)}, nil
}

// Model returns an identifier that changes with the dimension.
func (h *HashingEmbedder) Model() string {
	return fmt.Sprintf("hash-%d", h.dimension)
}

// Dimension returns the vector size.
func (h *HashingEmbedder) Dimension() int {
	return h.dimension
}

// Embed hashes the tokens of text into an L2-normalised vector.
// Text without any token yields the zero vector.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds every text in order.
func (h *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lowercases text, splits on non-alphanumerics and drops stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
