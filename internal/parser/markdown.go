package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var h1Regex = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// MarkdownDoc is a Markdown document with its frontmatter split off.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from frontmatter or the first h1
	Title string

	// Body after frontmatter
	Content string
}

// ParseMarkdown separates YAML frontmatter from the Markdown body.
// Malformed frontmatter is ignored rather than rejected.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
		Content:     content,
	}

	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			doc.Content = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Title = extractTitle(doc.Frontmatter, doc.Content)
	return doc
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *MarkdownDoc) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}
