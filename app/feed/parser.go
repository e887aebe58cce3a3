package feed

import (
	"bytes"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run extracts up to MaxCandidates entries in document order. Entries without
// both a title and a link are skipped. Documents gofeed rejects are scanned
// for item/entry blocks instead, so a malformed feed yields what it can and
// never an error.
func (p *Parser) Run(data []byte) []Candidate {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Feed parser rejected document, scanning for entries", "error", err)
		return scanEntries(data)
	}

	candidates := make([]Candidate, 0, min(len(parsed.Items), MaxCandidates))
	for _, item := range parsed.Items {
		if len(candidates) == MaxCandidates {
			break
		}

		c := Candidate{
			Title: strings.TrimSpace(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		if c.Link == "" && len(item.Links) > 0 {
			c.Link = strings.TrimSpace(item.Links[0])
		}
		if item.PublishedParsed != nil {
			c.PublishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			c.PublishedAt = item.UpdatedParsed
		}

		if c.Title == "" || c.Link == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

var (
	entryPattern    = regexp.MustCompile(`(?is)<(item|entry)(?:\s[^>]*)?>(.*?)</(?:item|entry)>`)
	titlePattern    = regexp.MustCompile(`(?is)<title(?:\s[^>]*)?>(.*?)</title>`)
	linkTextPattern = regexp.MustCompile(`(?is)<link(?:\s[^>]*[^/])?>(.*?)</link>`)
	linkHrefPattern = regexp.MustCompile(`(?is)<link\s[^>]*href\s*=\s*["']([^"']+)["']`)
	cdataPattern    = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

func scanEntries(data []byte) []Candidate {
	matches := entryPattern.FindAllSubmatchIndex(data, -1)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i][0] < matches[j][0] })

	var candidates []Candidate
	for _, m := range matches {
		if len(candidates) == MaxCandidates {
			break
		}
		block := data[m[4]:m[5]]

		var c Candidate
		if t := titlePattern.FindSubmatch(block); t != nil {
			c.Title = cleanText(t[1])
		}
		if l := linkTextPattern.FindSubmatch(block); l != nil {
			c.Link = cleanText(l[1])
		}
		if c.Link == "" {
			if l := linkHrefPattern.FindSubmatch(block); l != nil {
				c.Link = cleanText(l[1])
			}
		}

		if c.Title == "" || c.Link == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// cleanText unwraps CDATA sections and decodes entities.
func cleanText(raw []byte) string {
	s := cdataPattern.ReplaceAllString(string(raw), "$1")
	return strings.TrimSpace(html.UnescapeString(s))
}
