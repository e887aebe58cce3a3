package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-insight/app/analyzer"
	"github.com/lysyi3m/rss-insight/app/content"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/feed"
)

type stubContent struct {
	ingested []feed.Candidate
	known    map[string]bool
	docs     map[string]*content.Document
	err      error
}

func newStubContent() *stubContent {
	return &stubContent{known: map[string]bool{}, docs: map[string]*content.Document{}}
}

func (s *stubContent) Ingest(_ context.Context, sourceID *string, c feed.Candidate) (*content.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.ingested = append(s.ingested, c)
	if s.known[c.Link] {
		return &content.Result{}, nil
	}
	s.known[c.Link] = true

	id := fmt.Sprintf("item-%d", len(s.known))
	doc := &content.Document{ID: id, URL: c.Link, Title: c.Title, Content: "text of " + c.Link}
	s.docs[content.ContentKey(id)] = doc
	return &content.Result{
		Item:     &database.Item{ID: id, SourceID: sourceID, URL: c.Link, Title: c.Title, ContentKey: content.ContentKey(id)},
		Document: doc,
		Created:  true,
	}, nil
}

func (s *stubContent) Document(_ context.Context, key string) (*content.Document, error) {
	return s.docs[key], nil
}

type stubAnalyzer struct {
	requests []analyzer.Request
	err      error
}

func (a *stubAnalyzer) AnalyzeItem(_ context.Context, req analyzer.Request) (*analyzer.Result, error) {
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	return &analyzer.Result{}, nil
}

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>One</title><link>https://example.com/one</link></item>
<item><title>Two</title><link>https://example.com/two</link></item>
</channel></rss>`

type processorFixture struct {
	db        *database.DB
	jobs      *Jobs
	content   *stubContent
	analyzer  *stubAnalyzer
	processor *Processor
	etags     []string
}

func newProcessorFixture(t *testing.T) (*processorFixture, *httptest.Server) {
	t.Helper()
	f := &processorFixture{
		db:       newTestDB(t),
		content:  newStubContent(),
		analyzer: &stubAnalyzer{},
	}
	f.jobs = NewJobs(f.db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.etags = append(f.etags, r.Header.Get("If-None-Match"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)

	f.processor = NewProcessor(f.db, f.jobs, feed.NewFetcher(srv.Client(), "test"), feed.NewParser(), f.content, f.analyzer)
	return f, srv
}

func fetchJob(sourceID string) database.Job {
	return database.Job{ID: "j-" + sourceID, Type: database.JobTypeFetch, SourceID: &sourceID, Status: database.JobStatusRunning}
}

func TestProcessFeedIngestsAndAnalyzes(t *testing.T) {
	ctx := context.Background()
	f, srv := newProcessorFixture(t)
	createSource(t, f.db, "s1", database.SourceTypeFeed, srv.URL)

	require.NoError(t, f.processor.Process(ctx, fetchJob("s1")))

	require.Len(t, f.content.ingested, 2)
	assert.Equal(t, "https://example.com/one", f.content.ingested[0].Link)
	require.Len(t, f.analyzer.requests, 2)
	assert.Equal(t, "text of https://example.com/one", f.analyzer.requests[0].Content)

	source, err := database.NewSourceRepository(f.db).Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, source.ETag)
	assert.NotNil(t, source.LastFetchedAt)

	// second fetch sends the stored etag and stops at 304
	require.NoError(t, f.processor.Process(ctx, fetchJob("s1")))
	assert.Equal(t, []string{"", `"v1"`}, f.etags)
	assert.Len(t, f.content.ingested, 2)
}

func TestProcessFeedDefersFailedAnalysis(t *testing.T) {
	ctx := context.Background()
	f, srv := newProcessorFixture(t)
	f.analyzer.err = errors.New("AI config not set")
	createSource(t, f.db, "s1", database.SourceTypeFeed, srv.URL)

	require.NoError(t, f.processor.Process(ctx, fetchJob("s1")))

	pending := pendingJobs(t, f.jobs)
	require.Len(t, pending, 2)
	for _, job := range pending {
		assert.Equal(t, database.JobTypeAnalyze, job.Type)
		require.NotNil(t, job.Cursor)
	}
}

func TestProcessFeedPropagatesIngestError(t *testing.T) {
	f, srv := newProcessorFixture(t)
	f.content.err = errors.New("page unreachable")
	createSource(t, f.db, "s1", database.SourceTypeFeed, srv.URL)

	err := f.processor.Process(context.Background(), fetchJob("s1"))
	assert.EqualError(t, err, "page unreachable")
}

func TestProcessPageSource(t *testing.T) {
	ctx := context.Background()
	f, _ := newProcessorFixture(t)
	createSource(t, f.db, "page", database.SourceTypePage, "https://example.com/a")

	require.NoError(t, f.processor.Process(ctx, fetchJob("page")))

	require.Len(t, f.content.ingested, 1)
	assert.Equal(t, feed.Candidate{Title: "page", Link: "https://example.com/a"}, f.content.ingested[0])
	assert.Len(t, f.analyzer.requests, 1)
}

func TestProcessFetchEdgeCases(t *testing.T) {
	ctx := context.Background()
	f, srv := newProcessorFixture(t)

	assert.ErrorIs(t, f.processor.Process(ctx, fetchJob("missing")), ErrSourceNotFound)

	createSource(t, f.db, "s1", database.SourceTypeFeed, srv.URL)
	require.NoError(t, database.NewSourceRepository(f.db).SetStatus(ctx, "s1", database.SourceStatusPaused))
	require.NoError(t, f.processor.Process(ctx, fetchJob("s1")))
	assert.Empty(t, f.etags)

	err := f.processor.Process(ctx, database.Job{ID: "x", Type: "cleanup"})
	assert.EqualError(t, err, "unknown job type: cleanup")
}

func TestProcessAnalyzeJob(t *testing.T) {
	ctx := context.Background()
	f, _ := newProcessorFixture(t)

	key := content.ContentKey("item-1")
	f.content.docs[key] = &content.Document{ID: "item-1", Content: "stored text"}
	_, err := database.NewItemRepository(f.db).Insert(ctx, &database.Item{
		ID: "item-1", URL: "https://example.com/one", Title: "One",
		ContentHash: "h", ContentKey: key, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	job := database.Job{ID: "a1", Type: database.JobTypeAnalyze, Cursor: strPtr("item-1")}
	require.NoError(t, f.processor.Process(ctx, job))
	require.Len(t, f.analyzer.requests, 1)
	assert.Equal(t, analyzer.Request{ItemID: "item-1", Content: "stored text", Title: "One", URL: "https://example.com/one"}, f.analyzer.requests[0])

	missing := database.Job{ID: "a2", Type: database.JobTypeAnalyze, Cursor: strPtr("nope")}
	assert.EqualError(t, f.processor.Process(ctx, missing), "item not found: nope")
}
