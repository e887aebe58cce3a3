package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lysyi3m/rss-insight/app/database"
)

// Dispatcher hands a claimed job to a worker and waits for its outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, job database.Job) error
}

// LocalDispatcher runs jobs in the current process.
type LocalDispatcher struct {
	worker *Worker
}

func NewLocalDispatcher(worker *Worker) *LocalDispatcher {
	return &LocalDispatcher{worker: worker}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job database.Job) error {
	return d.worker.Run(ctx, job)
}

// HTTPDispatcher posts jobs to a worker's /process endpoint.
type HTTPDispatcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPDispatcher(client *http.Client, baseURL, apiKey string) *HTTPDispatcher {
	return &HTTPDispatcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, job database.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("worker returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
