package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-insight/app/analyzer"
	"github.com/lysyi3m/rss-insight/app/content"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/feed"
)

var ErrSourceNotFound = errors.New("source not found")

type FeedFetcher interface {
	FetchFeed(ctx context.Context, url, etag string) (*feed.FeedResponse, error)
}

type FeedParser interface {
	Run(data []byte) []feed.Candidate
}

type ContentStore interface {
	Ingest(ctx context.Context, sourceID *string, c feed.Candidate) (*content.Result, error)
	Document(ctx context.Context, key string) (*content.Document, error)
}

type Analyzer interface {
	AnalyzeItem(ctx context.Context, req analyzer.Request) (*analyzer.Result, error)
}

// Processor performs the work behind a claimed job. It never changes the
// job's own status.
type Processor struct {
	sources  *database.SourceRepository
	items    *database.ItemRepository
	jobs     *Jobs
	fetcher  FeedFetcher
	parser   FeedParser
	content  ContentStore
	analyzer Analyzer
}

func NewProcessor(db *database.DB, jobs *Jobs, fetcher FeedFetcher, parser FeedParser, store ContentStore, analyzer Analyzer) *Processor {
	return &Processor{
		sources:  database.NewSourceRepository(db),
		items:    database.NewItemRepository(db),
		jobs:     jobs,
		fetcher:  fetcher,
		parser:   parser,
		content:  store,
		analyzer: analyzer,
	}
}

func (p *Processor) Process(ctx context.Context, job database.Job) error {
	switch job.Type {
	case database.JobTypeFetch:
		return p.processFetch(ctx, job)
	case database.JobTypeAnalyze:
		return p.processAnalyze(ctx, job)
	case database.JobTypeReport:
		slog.Debug("Report job has no work", "id", job.ID)
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processFetch(ctx context.Context, job database.Job) error {
	if job.SourceID == nil {
		return ErrSourceNotFound
	}

	source, err := p.sources.Get(ctx, *job.SourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return ErrSourceNotFound
	}
	if source.Status != database.SourceStatusActive {
		slog.Debug("Source paused, skipping fetch", "source", source.Name)
		return nil
	}

	switch source.Type {
	case database.SourceTypeFeed:
		fetched, err := p.fetchFeed(ctx, source)
		if err != nil {
			return err
		}
		if !fetched {
			return nil
		}
	case database.SourceTypePage:
		if err := p.ingest(ctx, source, feed.Candidate{Title: source.Name, Link: source.URL}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown source type: %s", source.Type)
	}

	return p.sources.UpdateFetchState(ctx, source.ID, p.jobs.now())
}

// fetchFeed reports false when the feed was not modified since the last fetch.
func (p *Processor) fetchFeed(ctx context.Context, source *database.Source) (bool, error) {
	resp, err := p.fetcher.FetchFeed(ctx, source.URL, source.ETag)
	if err != nil {
		return false, err
	}
	if resp.NotModified {
		slog.Debug("Feed not modified", "source", source.Name)
		return false, nil
	}

	if resp.ETag != "" && resp.ETag != source.ETag {
		if err := p.sources.UpdateETag(ctx, source.ID, resp.ETag); err != nil {
			return false, err
		}
	}

	candidates := p.parser.Run(resp.Body)
	slog.Debug("Feed parsed", "source", source.Name, "candidates", len(candidates))

	for _, c := range candidates {
		if err := p.ingest(ctx, source, c); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ingest stores one candidate and analyzes it when it is new. An analysis
// failure leaves an analyze job behind instead of failing the fetch.
func (p *Processor) ingest(ctx context.Context, source *database.Source, c feed.Candidate) error {
	result, err := p.content.Ingest(ctx, &source.ID, c)
	if err != nil {
		return err
	}
	if !result.Created {
		return nil
	}

	item := result.Item
	_, err = p.analyzer.AnalyzeItem(ctx, analyzer.Request{
		ItemID:  item.ID,
		Content: result.Document.Content,
		Title:   item.Title,
		URL:     item.URL,
	})
	if err == nil {
		return nil
	}

	slog.Warn("Analysis failed, deferring to analyze job", "item_id", item.ID, "url", item.URL, "error", err)
	if _, err := p.jobs.Create(ctx, database.JobTypeAnalyze, &source.ID, &item.ID, p.jobs.now()); err != nil {
		return fmt.Errorf("failed to enqueue analysis of %s: %w", item.ID, err)
	}
	return nil
}

func (p *Processor) processAnalyze(ctx context.Context, job database.Job) error {
	if job.Cursor == nil || *job.Cursor == "" {
		return fmt.Errorf("analyze job %s has no item", job.ID)
	}

	item, err := p.items.Get(ctx, *job.Cursor)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item not found: %s", *job.Cursor)
	}

	doc, err := p.content.Document(ctx, item.ContentKey)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("content not found: %s", item.ContentKey)
	}

	_, err = p.analyzer.AnalyzeItem(ctx, analyzer.Request{
		ItemID:  item.ID,
		Content: doc.Content,
		Title:   item.Title,
		URL:     item.URL,
	})
	return err
}
