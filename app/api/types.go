package api

import (
	"context"

	"github.com/lysyi3m/rss-insight/app/analyzer"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/rag"
	"github.com/lysyi3m/rss-insight/app/settings"
	"github.com/lysyi3m/rss-insight/app/sources"
	"github.com/lysyi3m/rss-insight/app/tasks"
)

const (
	defaultInsightLimit = 50
	maxInsightLimit     = 100
	defaultJobLimit     = 50
	maxJobLimit         = 200
)

// HealthChecker reports the state of an external dependency. A "status" other
// than "healthy" marks the service degraded.
type HealthChecker interface {
	Health(ctx context.Context) map[string]any
}

type Handler struct {
	db       *database.DB
	sources  *sources.Service
	jobs     *tasks.Jobs
	worker   *tasks.Worker
	analyzer *analyzer.Service
	rag      *rag.Engine
	settings *settings.Service
	insights *database.InsightRepository
	items    *database.ItemRepository
	version  string

	settingsStore HealthChecker
}

type chatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type statusRequest struct {
	Status database.SourceStatus `json:"status"`
}
