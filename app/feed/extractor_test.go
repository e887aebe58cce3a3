package feed

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "strips markup and collapses whitespace",
			html:     "<html><body><h1>Title</h1>\n\n<p>First   paragraph.</p><p>Second</p></body></html>",
			expected: "Title First paragraph. Second",
		},
		{
			name:     "drops script and style bodies",
			html:     `<head><style>p { color: red }</style><script>var x = "<p>no</p>";</script></head><p>kept</p>`,
			expected: "kept",
		},
		{
			name:     "tags become whitespace",
			html:     "one<br>two<span>three</span>",
			expected: "one two three",
		},
		{
			name:     "decodes entities",
			html:     "<p>Tom &amp; Jerry &lt;3 &#8220;quoted&#8221;</p>",
			expected: "Tom & Jerry <3 “quoted”",
		},
		{
			name:     "normalizes to NFC",
			html:     "<p>café</p>",
			expected: "café",
		},
		{
			name:     "empty document",
			html:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractText([]byte(tt.html))
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestExtractTextTruncates(t *testing.T) {
	body := "<p>" + strings.Repeat("é", MaxTextLength+100) + "</p>"

	got := ExtractText([]byte(body))

	if n := utf8.RuneCountInString(got); n != MaxTextLength {
		t.Errorf("Expected %d characters, got %d", MaxTextLength, n)
	}
}

func TestMetadataBestEffort(t *testing.T) {
	page := `<html><head><title>Growth Notes</title>
<meta property="article:published_time" content="2024-05-01T10:00:00Z"></head>
<body><article><h1>Growth Notes</h1><p>` + strings.Repeat("Some long enough paragraph text for readability. ", 20) + `</p></article></body></html>`

	meta := Metadata([]byte(page), "https://example.com/a")

	if meta.Title != "Growth Notes" {
		t.Errorf("Expected title 'Growth Notes', got %q", meta.Title)
	}
}
