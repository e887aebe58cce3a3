package feed

import (
	"time"
)

// MaxCandidates bounds how many entries a single feed fetch yields.
const MaxCandidates = 10

// MaxTextLength bounds extracted page text, in characters.
const MaxTextLength = 50000

// Candidate is one feed entry that may become an item.
type Candidate struct {
	Title       string
	Link        string
	PublishedAt *time.Time
}

type FeedResponse struct {
	NotModified bool
	Body        []byte
	ETag        string
}

type Page struct {
	URL         string // after redirects
	ContentType string
	Body        []byte // UTF-8
}

type PageMetadata struct {
	Title       string
	PublishedAt *time.Time
}
