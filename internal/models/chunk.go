// Package models defines the data structures shared by the ragbot pipeline.
package models

import "fmt"

// Span is a half-open range of rune offsets into a source document.
type Span struct {
	Start int `json:"start" cbor:"1,keyasint"`
	End   int `json:"end" cbor:"2,keyasint"`
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk is a bounded, overlapping segment of a source document.
// Chunks are immutable once created.
type Chunk struct {
	ID            string `json:"id" cbor:"1,keyasint"`
	Text          string `json:"text" cbor:"2,keyasint"`
	SourceID      string `json:"source_id" cbor:"3,keyasint"`
	SequenceIndex int    `json:"sequence_index" cbor:"4,keyasint"`
	CharSpan      Span   `json:"char_span" cbor:"5,keyasint"`
}

// ChunkID builds the stable identifier of the n-th chunk of a source.
func ChunkID(sourceID string, seq int) string {
	return fmt.Sprintf("%s:%d", sourceID, seq)
}

// ChunkSet is the artifact written after chunking and read before index build.
type ChunkSet struct {
	Chunks           []Chunk `json:"chunks"`
	EmbeddingModelID string  `json:"embedding_model_id"`
}

// Sources returns the distinct source ids in first-seen order.
func (cs ChunkSet) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range cs.Chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		out = append(out, c.SourceID)
	}
	return out
}
