package parser

import (
	"strings"
	"testing"
	"unicode"

	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpusWords = []string{
	"attention", "is", "all", "you", "need", "the", "transformer", "relies",
	"entirely", "on", "self-attention", "to", "compute", "representations",
	"of", "its", "input", "and", "output", "without", "recurrence",
}

// makeDocument builds deterministic prose of exactly n runes.
func makeDocument(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n+20; i++ {
		w := corpusWords[i%len(corpusWords)]
		sb.WriteString(w)
		if i%12 == 11 {
			sb.WriteString(". ")
		} else {
			sb.WriteString(" ")
		}
	}
	doc := []rune(sb.String())[:n]
	if unicode.IsSpace(doc[n-1]) {
		doc[n-1] = 'x'
	}
	return string(doc)
}

// assertCoverage checks that spans are contiguous slices with no gaps.
func assertCoverage(t *testing.T, text string, chunks []models.Chunk, overlap int) {
	t.Helper()
	runes := []rune(strings.TrimRightFunc(text, unicode.IsSpace))

	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].CharSpan.Start, "first chunk starts at 0")
	assert.Equal(t, len(runes), chunks[len(chunks)-1].CharSpan.End, "last chunk reaches end of text")

	for i, c := range chunks {
		assert.Equal(t, i, c.SequenceIndex)
		assert.Equal(t, string(runes[c.CharSpan.Start:c.CharSpan.End]), c.Text, "chunk %d text matches span", i)
		if i == 0 {
			continue
		}
		prev := chunks[i-1].CharSpan
		assert.LessOrEqual(t, c.CharSpan.Start, prev.End, "chunk %d leaves a gap", i)
		assert.Greater(t, c.CharSpan.Start, prev.Start, "chunk %d must advance", i)
		assert.LessOrEqual(t, prev.End-c.CharSpan.Start, overlap, "chunk %d overlaps too much", i)
	}
}

func TestChunkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkConfig
		wantErr bool
	}{
		{"defaults", DefaultChunkConfig(), false},
		{"small valid", ChunkConfig{Size: 10, Overlap: 1}, false},
		{"zero size", ChunkConfig{Size: 0, Overlap: 0}, true},
		{"negative size", ChunkConfig{Size: -1, Overlap: 5}, true},
		{"zero overlap", ChunkConfig{Size: 800, Overlap: 0}, true},
		{"overlap equals size", ChunkConfig{Size: 100, Overlap: 100}, true},
		{"overlap exceeds size", ChunkConfig{Size: 100, Overlap: 150}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChunkText_InvalidConfigBeforeProcessing(t *testing.T) {
	// Configuration errors win over empty-document errors.
	_, err := ChunkText("", "doc", ChunkConfig{Size: 10, Overlap: 20})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.NotErrorIs(t, err, models.ErrEmptyDocument)
}

func TestChunkText_EmptyDocument(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t  \n"} {
		_, err := ChunkText(text, "doc", DefaultChunkConfig())
		assert.ErrorIs(t, err, models.ErrEmptyDocument, "text %q", text)
	}
}

func TestChunkText_ShortDocumentSingleChunk(t *testing.T) {
	chunks, err := ChunkText("Short paper abstract.\n", "paper", DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "Short paper abstract.", chunks[0].Text)
	assert.Equal(t, "paper:0", chunks[0].ID)
	assert.Equal(t, "paper", chunks[0].SourceID)
	assert.Equal(t, models.Span{Start: 0, End: 21}, chunks[0].CharSpan)
}

func TestChunkText_TwoThousandCharacterScenario(t *testing.T) {
	doc := makeDocument(2000)
	require.Len(t, []rune(doc), 2000)

	cfg := ChunkConfig{Size: 800, Overlap: 150}
	chunks, err := ChunkText(doc, "1706.03762", cfg)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(chunks), 2)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 800, "chunk %d too long", i)
	}
	for i := 1; i < len(chunks); i++ {
		shared := chunks[i-1].CharSpan.End - chunks[i].CharSpan.Start
		// Overlap snaps forward to a word start, so it may shrink by up to one word.
		assert.GreaterOrEqual(t, shared, 150-20, "chunk %d shares too little", i)
		assert.LessOrEqual(t, shared, 150)
	}
	assertCoverage(t, doc, chunks, cfg.Overlap)
}

func TestChunkText_Coverage(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  ChunkConfig
	}{
		{"prose", makeDocument(5000), ChunkConfig{Size: 300, Overlap: 40}},
		{"paragraphs", strings.Repeat(makeDocument(350)+"\n\n", 8), ChunkConfig{Size: 500, Overlap: 60}},
		{"lines", strings.Repeat("line of text number\n", 120), ChunkConfig{Size: 100, Overlap: 10}},
		{"no separators", strings.Repeat("a", 2000), ChunkConfig{Size: 800, Overlap: 150}},
		{"unicode", strings.Repeat("héllo wörld ünïcode ", 200), ChunkConfig{Size: 120, Overlap: 30}},
		{"leading whitespace", "   \n\n" + makeDocument(900), ChunkConfig{Size: 200, Overlap: 20}},
		{"tiny window", makeDocument(300), ChunkConfig{Size: 2, Overlap: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := ChunkText(tt.text, "src", tt.cfg)
			require.NoError(t, err)
			for i, c := range chunks {
				assert.LessOrEqual(t, c.CharSpan.Len(), tt.cfg.Size, "chunk %d exceeds size", i)
			}
			assertCoverage(t, tt.text, chunks, tt.cfg.Overlap)
		})
	}
}

func TestChunkText_HardCut(t *testing.T) {
	chunks, err := ChunkText(strings.Repeat("a", 2000), "blob", ChunkConfig{Size: 800, Overlap: 150})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, models.Span{Start: 0, End: 800}, chunks[0].CharSpan)
	assert.Equal(t, models.Span{Start: 650, End: 1450}, chunks[1].CharSpan)
	assert.Equal(t, models.Span{Start: 1300, End: 2000}, chunks[2].CharSpan)
}

func TestChunkText_PrefersParagraphBoundary(t *testing.T) {
	para1 := makeDocument(300)
	para2 := makeDocument(600)
	text := para1 + "\n\n" + para2

	chunks, err := ChunkText(text, "doc", ChunkConfig{Size: 800, Overlap: 50})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, para1+"\n\n", chunks[0].Text)
}

func TestChunkText_PrefersSentenceOverWord(t *testing.T) {
	text := "First sentence is here. Second sentence runs on and on without stopping at all"
	chunks, err := ChunkText(text, "doc", ChunkConfig{Size: 60, Overlap: 10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, "First sentence is here. ", chunks[0].Text)
}

func TestChunkText_OverlapStartsAtWord(t *testing.T) {
	chunks, err := ChunkText(makeDocument(1200), "doc", ChunkConfig{Size: 400, Overlap: 80})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		first := []rune(chunks[i].Text)[0]
		assert.False(t, unicode.IsSpace(first), "chunk %d starts with whitespace", i)
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	doc := makeDocument(3000)
	a, err := ChunkText(doc, "doc", DefaultChunkConfig())
	require.NoError(t, err)
	b, err := ChunkText(doc, "doc", DefaultChunkConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
