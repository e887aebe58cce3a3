package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedderAgainstCompatibleServer(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"test-embed","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,1]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	embedder, err := New(context.Background(), Config{Provider: ProviderOpenAI, BaseURL: srv.URL, Model: "test-embed"})
	require.NoError(t, err)

	vector, err := embedder.EmbedText(context.Background(), "hello\nworld")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, 0.25, 1}, vector)
	assert.Equal(t, "/embeddings", gotPath)
	assert.Equal(t, "test-embed", gotBody["model"])
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "cohere"})
	assert.Error(t, err)
}

func TestGenAIEmbedderRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderGemini})
	assert.Error(t, err)
}
