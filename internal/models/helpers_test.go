package models

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "hello", "hello"},
		{"uppercase", "Hello World", "hello-world"},
		{"underscores", "my_doc_name", "my-doc-name"},
		{"special chars stripped", "Hello, World!", "hello-world"},
		{"dots preserved", "doc-v2.1", "doc-v2.1"},
		{"arxiv id", "1706.03762", "1706.03762"},
		{"mixed", "My Cool_Doc (v3)", "my-cool-doc-v3"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"consecutive spaces", "hello   world", "hello---world"},
		{"unicode stripped", "café résumé", "caf-rsum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("1706.03762", 3); got != "1706.03762:3" {
		t.Errorf("ChunkID() = %q", got)
	}
}
