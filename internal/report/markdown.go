package report

import (
	"bytes"
	"fmt"
)

const (
	markdownContentType   = "text/markdown; charset=utf-8"
	markdownFileExtension = ".md"
)

type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (mf *MarkdownFormatter) Format(r Report) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", baseTitle)
	fmt.Fprintf(&buf, "Generated on: %s\n", r.GeneratedAt.Format("2006-01-02 15:04"))

	prev := blockHeading
	for _, b := range r.blocks() {
		// blank line between paragraphs and around headings, not inside lists
		if !(isListItem(b.kind) && isListItem(prev)) {
			buf.WriteString("\n")
		}
		switch b.kind {
		case blockHeading:
			fmt.Fprintf(&buf, "## %s\n", b.text)
		case blockParagraph:
			fmt.Fprintf(&buf, "%s\n", b.text)
		case blockBullet:
			fmt.Fprintf(&buf, "- %s\n", b.text)
		case blockMetric:
			fmt.Fprintf(&buf, "- **%s**: %.4f\n", b.text, b.value)
		}
		prev = b.kind
	}
	return buf.Bytes(), nil
}

func isListItem(k blockKind) bool {
	return k == blockBullet || k == blockMetric
}

func (mf *MarkdownFormatter) ContentType() string {
	return markdownContentType
}

func (mf *MarkdownFormatter) FileExtension() string {
	return markdownFileExtension
}
