package models

import "strings"

// Slugify converts a name to a lowercase identifier usable as a source id.
// Spaces and underscores become hyphens; dots and hyphens are kept so that
// arXiv ids such as 1706.03762 survive. Everything else is dropped.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteRune('-')
		}
	}
	return b.String()
}
