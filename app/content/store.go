package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/embedding"
	"github.com/lysyi3m/rss-insight/app/feed"
	"github.com/lysyi3m/rss-insight/app/store"
)

// embedLength is how many characters of the text are embedded.
const embedLength = 8000

// Document is the stored form of an item's extracted text.
type Document struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*feed.Page, error)
}

type Blobs interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

type Vectors interface {
	Upsert(ctx context.Context, entry store.VectorEntry) error
}

// Result describes one ingestion. Item is nil when the URL was already known.
type Result struct {
	Item     *database.Item
	Document *Document
	Created  bool
}

// Store turns candidate URLs into stored items. Each step after the fetch
// overwrites by item id, so a replay after a partial failure is harmless.
type Store struct {
	items    *database.ItemRepository
	fetcher  PageFetcher
	blobs    Blobs
	vectors  Vectors
	embedder embedding.Embedder
	now      func() time.Time
}

func NewStore(items *database.ItemRepository, fetcher PageFetcher, blobs Blobs, vectors Vectors, embedder embedding.Embedder) *Store {
	return &Store{
		items:    items,
		fetcher:  fetcher,
		blobs:    blobs,
		vectors:  vectors,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func ContentKey(itemID string) string {
	return "content/" + itemID + ".json"
}

// Ingest fetches, extracts and stores the candidate unless its URL already
// exists. A page fetch failure aborts with an error.
func (s *Store) Ingest(ctx context.Context, sourceID *string, c feed.Candidate) (*Result, error) {
	exists, err := s.items.ExistsByURL(ctx, c.Link)
	if err != nil {
		return nil, err
	}
	if exists {
		slog.Debug("Item already ingested", "url", c.Link)
		return &Result{}, nil
	}

	page, err := s.fetcher.FetchPage(ctx, c.Link)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.Link, err)
	}

	text := feed.ExtractText(page.Body)
	hash := sha256.Sum256([]byte(text))

	title := c.Title
	publishedAt := c.PublishedAt
	if title == "" || publishedAt == nil {
		meta := feed.Metadata(page.Body, page.URL)
		if title == "" {
			title = meta.Title
		}
		if publishedAt == nil {
			publishedAt = meta.PublishedAt
		}
	}

	now := s.now()
	itemID := uuid.NewString()
	doc := &Document{ID: itemID, URL: c.Link, Title: title, Content: text, FetchedAt: now}

	key := ContentKey(itemID)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return nil, err
	}

	vectorID, err := s.embed(ctx, itemID, key, sourceID, doc)
	if err != nil {
		return nil, err
	}

	item := &database.Item{
		ID:          itemID,
		SourceID:    sourceID,
		URL:         c.Link,
		Title:       title,
		PublishedAt: publishedAt,
		ContentHash: hex.EncodeToString(hash[:]),
		ContentKey:  key,
		VectorID:    vectorID,
		CreatedAt:   now,
	}

	created, err := s.items.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	if !created {
		// another worker stored the same URL in the meantime
		slog.Debug("Item inserted concurrently", "url", c.Link)
		return &Result{}, nil
	}

	itemsIngested.Inc()
	slog.Info("Item ingested", "id", itemID, "url", c.Link, "length", len(text), "embedded", vectorID != "")

	return &Result{Item: item, Document: doc, Created: true}, nil
}

func (s *Store) embed(ctx context.Context, itemID, key string, sourceID *string, doc *Document) (string, error) {
	vector, err := s.embedder.EmbedText(ctx, Truncate(doc.Content, embedLength))
	if err != nil {
		return "", fmt.Errorf("failed to embed %s: %w", doc.URL, err)
	}
	if len(vector) == 0 {
		return "", nil
	}

	metadata := map[string]string{
		"url":         doc.URL,
		"title":       doc.Title,
		"content_key": key,
	}
	if sourceID != nil {
		metadata["source_id"] = *sourceID
	}

	if err := s.vectors.Upsert(ctx, store.VectorEntry{ID: itemID, Values: vector, Metadata: metadata}); err != nil {
		return "", err
	}
	return itemID, nil
}

// Document loads a stored document. It returns nil when the key is unknown.
func (s *Store) Document(ctx context.Context, key string) (*Document, error) {
	data, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return &doc, nil
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
