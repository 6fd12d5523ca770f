package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/raphaelgruber/ragbot/internal/models"
)

// Document is the extracted text of one source file.
type Document struct {
	SourceID string
	Path     string
	Title    string
	Text     string
	Pages    int
}

// SupportedExtensions lists the file types LoadDocument understands.
var SupportedExtensions = []string{".pdf", ".md", ".txt"}

// IsSupported reports whether path has a loadable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SourceIDFromPath derives a stable source id from a file name.
func SourceIDFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return models.Slugify(stem)
}

// LoadDocument reads a document from disk and extracts its text.
func LoadDocument(path string) (Document, error) {
	doc := Document{
		SourceID: SourceIDFromPath(path),
		Path:     path,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, pages, err := ExtractPDF(path)
		if err != nil {
			return Document{}, err
		}
		doc.Text = text
		doc.Pages = pages

	case ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read file: %w", err)
		}
		md := ParseMarkdown(string(content))
		doc.Title = md.Title
		doc.Text = md.Content
		if id := md.GetFrontmatterString("source_id"); id != "" {
			doc.SourceID = id
		}

	case ".txt":
		content, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read file: %w", err)
		}
		doc.Text = string(content)

	default:
		return Document{}, fmt.Errorf("unsupported document type: %s", path)
	}

	return doc, nil
}

// ExtractPDF extracts plain text from a PDF, page by page.
// Pages that fail to decode are skipped with a warning; a PDF that yields
// no text at all is reported as an empty document.
func ExtractPDF(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping unreadable pdf page", "file", filepath.Base(path), "page", i, "error", err)
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(strings.TrimSpace(text))
	}

	if strings.TrimSpace(buf.String()) == "" {
		return "", numPages, fmt.Errorf("%w: no text extracted from %s", models.ErrEmptyDocument, path)
	}

	return buf.String(), numPages, nil
}
