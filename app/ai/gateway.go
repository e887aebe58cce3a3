package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var _ Sender = (*Gateway)(nil)

// Gateway translates a provider-neutral conversation into one HTTP call to
// the configured provider. It never retries.
type Gateway struct {
	httpClient *http.Client
}

func NewGateway(httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Gateway{httpClient: httpClient}
}

func (g *Gateway) Send(ctx context.Context, opts Options, messages []Message) (*Response, error) {
	var (
		req         *http.Request
		contentPath string
		err         error
	)

	switch opts.Provider {
	case ProviderOpenAI:
		req, err = openAIRequest(ctx, opts, messages)
		contentPath = "choices.0.message.content"
	case ProviderAnthropic:
		req, err = anthropicRequest(ctx, opts, messages)
		contentPath = "content.0.text"
	case ProviderGemini:
		req, err = geminiRequest(ctx, opts, messages)
		contentPath = "candidates.0.content.parts.0.text"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", opts.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", opts.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Provider: opts.Provider, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", opts.Provider)
	}

	slog.Debug("Provider call completed", "provider", opts.Provider, "model", opts.Model, "duration", time.Since(start))

	return &Response{
		Content: gjson.GetBytes(body, contentPath).String(),
		Raw:     json.RawMessage(body),
	}, nil
}

func newJSONRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
