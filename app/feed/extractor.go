package feed

import (
	"bytes"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ExtractText reduces an HTML document to plain text: script and style
// bodies are dropped, every tag becomes whitespace, entities are decoded and
// whitespace runs collapse to one space. The result is NFC-normalized and
// capped at MaxTextLength characters.
func ExtractText(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))

	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				slog.Debug("HTML tokenizer stopped early", "error", tokenizer.Err())
			}
			return finishText(sb.String())
		case html.StartTagToken:
			if isSkipped(tokenizer) {
				skipDepth++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			if isSkipped(tokenizer) && skipDepth > 0 {
				skipDepth--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}

func isSkipped(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func finishText(raw string) string {
	text := norm.NFC.String(strings.Join(strings.Fields(raw), " "))

	if len(text) <= MaxTextLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxTextLength {
		return text
	}
	return strings.TrimSpace(string(runes[:MaxTextLength]))
}

// Metadata recovers the page title and publish time. Failures yield empty
// metadata.
func Metadata(data []byte, pageURL string) PageMetadata {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		slog.Debug("Readability could not parse page", "url", pageURL, "error", err)
		return PageMetadata{}
	}

	return PageMetadata{
		Title:       strings.TrimSpace(article.Title),
		PublishedAt: article.PublishedTime,
	}
}
