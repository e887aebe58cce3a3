package rag

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-insight/app/ai"
	"github.com/lysyi3m/rss-insight/app/content"
	"github.com/lysyi3m/rss-insight/app/settings"
	"github.com/lysyi3m/rss-insight/app/store"
)

type stubEmbedder struct{ vector []float32 }

func (e stubEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return e.vector, nil
}

type stubSettings struct{ calls int }

func (s *stubSettings) Load(context.Context) (*settings.Config, error) {
	s.calls++
	return &settings.Config{Provider: "anthropic", Model: "claude-test", APIKey: "k", Temperature: 0.2, MaxTokens: 2000}, nil
}

type stubSender struct {
	calls    int
	opts     ai.Options
	messages []ai.Message
}

func (s *stubSender) Send(_ context.Context, opts ai.Options, messages []ai.Message) (*ai.Response, error) {
	s.calls++
	s.opts = opts
	s.messages = messages
	return &ai.Response{Content: "Focus on retention."}, nil
}

type fixture struct {
	engine   *Engine
	vectors  *store.VectorIndex
	blobs    *store.BlobStore
	settings *stubSettings
	sender   *stubSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := store.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	f := &fixture{
		vectors:  store.NewVectorIndex(backend),
		blobs:    store.NewBlobStore(backend),
		settings: &stubSettings{},
		sender:   &stubSender{},
	}
	docs := content.NewStore(nil, nil, f.blobs, f.vectors, nil)
	f.engine = NewEngine(stubEmbedder{vector: []float32{1, 0}}, f.vectors, docs, f.settings, f.sender)
	return f
}

func (f *fixture) addDocument(t *testing.T, id, title string, vector []float32, text string) {
	t.Helper()
	ctx := context.Background()
	key := content.ContentKey(id)
	data, err := json.Marshal(content.Document{ID: id, URL: "https://example.com/" + id, Title: title, Content: text})
	require.NoError(t, err)
	require.NoError(t, f.blobs.Put(ctx, key, data))
	require.NoError(t, f.vectors.Upsert(ctx, store.VectorEntry{
		ID: id, Values: vector, Metadata: map[string]string{"content_key": key, "title": title},
	}))
}

func TestAskWithoutMatchesSkipsProvider(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.Ask(context.Background(), "how do I grow?", 5)
	require.NoError(t, err)

	assert.Equal(t, NoContentAnswer, answer.Answer)
	assert.Equal(t, []Source{}, answer.Sources)
	assert.Zero(t, f.sender.calls)
	assert.Zero(t, f.settings.calls)
}

func TestAskSkipsUnresolvableMatches(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vectors.Upsert(context.Background(), store.VectorEntry{
		ID: "orphan", Values: []float32{1, 0}, Metadata: map[string]string{"content_key": "content/orphan.json"},
	}))

	answer, err := f.engine.Ask(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, NoContentAnswer, answer.Answer)
	assert.Zero(t, f.sender.calls)
}

func TestAskBuildsContextInVectorOrder(t *testing.T) {
	f := newFixture(t)
	f.addDocument(t, "far", "Far", []float32{0.2, 1}, "far text")
	f.addDocument(t, "near", "Near", []float32{1, 0.1}, strings.Repeat("n", 2500))

	answer, err := f.engine.Ask(context.Background(), "What matters?", 0)
	require.NoError(t, err)

	assert.Equal(t, "Focus on retention.", answer.Answer)
	assert.Equal(t, []Source{
		{ID: "near", Title: "Near", URL: "https://example.com/near"},
		{ID: "far", Title: "Far", URL: "https://example.com/far"},
	}, answer.Sources)

	require.Equal(t, 1, f.sender.calls)
	require.Len(t, f.sender.messages, 2)
	assert.Equal(t, chatSystemPrompt, f.sender.messages[0].Content)

	user := f.sender.messages[1].Content
	assert.True(t, strings.HasPrefix(user, "Question: What matters?\n\nContext:\nTitle: Near\nURL: https://example.com/near\nContent: "))
	assert.Contains(t, user, strings.Repeat("n", 2000)+"\n\nTitle: Far")
	assert.NotContains(t, user, strings.Repeat("n", 2001))

	require.NotNil(t, f.sender.opts.Temperature)
	assert.Equal(t, 0.3, *f.sender.opts.Temperature)
	assert.Equal(t, 1500, f.sender.opts.MaxTokens)
	assert.Equal(t, "claude-test", f.sender.opts.Model)
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	_, err := newFixture(t).engine.Ask(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 5, ClampTopK(0))
	assert.Equal(t, 1, ClampTopK(-4))
	assert.Equal(t, 1, ClampTopK(1))
	assert.Equal(t, 7, ClampTopK(7))
	assert.Equal(t, 10, ClampTopK(50))
}
