package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-insight/app/ai"
	"github.com/lysyi3m/rss-insight/app/content"
	"github.com/lysyi3m/rss-insight/app/embedding"
	"github.com/lysyi3m/rss-insight/app/settings"
	"github.com/lysyi3m/rss-insight/app/store"
)

var (
	ErrEmptyQuery  = errors.New("missing query")
	ErrNoEmbedding = errors.New("embedding generation failed")
)

const (
	DefaultTopK = 5
	MaxTopK     = 10

	NoContentAnswer = "No relevant content found in knowledge base."

	blockContentLength = 2000
	chatTemperature    = 0.3
	chatMaxTokens      = 1500
	chatSystemPrompt   = "You are a growth research assistant. Answer based only on provided context. Be concise and actionable."
)

type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]store.Match, error)
}

type DocumentLoader interface {
	Document(ctx context.Context, key string) (*content.Document, error)
}

type SettingsLoader interface {
	Load(ctx context.Context) (*settings.Config, error)
}

type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Engine answers questions from stored content.
type Engine struct {
	embedder  embedding.Embedder
	vectors   VectorSearcher
	documents DocumentLoader
	settings  SettingsLoader
	gateway   ai.Sender
}

func NewEngine(embedder embedding.Embedder, vectors VectorSearcher, documents DocumentLoader, settings SettingsLoader, gateway ai.Sender) *Engine {
	return &Engine{
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		settings:  settings,
		gateway:   gateway,
	}
}

// ClampTopK maps a requested result count onto [1, MaxTopK]; zero selects
// DefaultTopK.
func ClampTopK(topK int) int {
	switch {
	case topK == 0:
		return DefaultTopK
	case topK < 1:
		return 1
	case topK > MaxTopK:
		return MaxTopK
	}
	return topK
}

// Ask retrieves the closest stored documents and asks the provider to answer
// from them. Without usable context the provider is not called.
func (e *Engine) Ask(ctx context.Context, query string, topK int) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoEmbedding, err)
	}
	if len(vector) == 0 {
		return nil, ErrNoEmbedding
	}

	matches, err := e.vectors.Query(ctx, vector, ClampTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	sources := []Source{}
	var blocks []string
	for _, m := range matches {
		key := m.Metadata["content_key"]
		if key == "" {
			continue
		}
		doc, err := e.documents.Document(ctx, key)
		if err != nil {
			slog.Warn("Failed to load document for match", "id", m.ID, "key", key, "error", err)
			continue
		}
		if doc == nil {
			continue
		}

		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s",
			doc.Title, doc.URL, content.Truncate(doc.Content, blockContentLength)))
		sources = append(sources, Source{ID: m.ID, Title: doc.Title, URL: doc.URL})
	}

	if len(blocks) == 0 {
		return &Answer{Answer: NoContentAnswer, Sources: []Source{}}, nil
	}

	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	opts := cfg.Options()
	temperature := chatTemperature
	opts.Temperature = &temperature
	opts.MaxTokens = chatMaxTokens

	resp, err := e.gateway.Send(ctx, opts, []ai.Message{
		{Role: ai.RoleSystem, Content: chatSystemPrompt},
		{Role: ai.RoleUser, Content: "Question: " + query + "\n\nContext:\n" + strings.Join(blocks, "\n\n")},
	})
	if err != nil {
		return nil, err
	}

	return &Answer{Answer: resp.Content, Sources: sources}, nil
}
