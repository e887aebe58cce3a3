package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-insight/app/analyzer"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/rag"
	"github.com/lysyi3m/rss-insight/app/settings"
	"github.com/lysyi3m/rss-insight/app/sources"
	"github.com/lysyi3m/rss-insight/app/tasks"
)

func NewHandler(db *database.DB, sourceService *sources.Service, jobs *tasks.Jobs, worker *tasks.Worker,
	analyzerService *analyzer.Service, engine *rag.Engine, settingsService *settings.Service, version string) *Handler {
	return &Handler{
		db:       db,
		sources:  sourceService,
		jobs:     jobs,
		worker:   worker,
		analyzer: analyzerService,
		rag:      engine,
		settings: settingsService,
		insights: database.NewInsightRepository(db),
		items:    database.NewItemRepository(db),
		version:  version,
	}
}

// SetSettingsStoreHealth makes /health include the settings store, used when
// settings live outside the embedded store.
func (h *Handler) SetSettingsStoreHealth(checker HealthChecker) {
	h.settingsStore = checker
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		slog.Error("Database ping failed", "error", err)
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	if itemCount, err := h.items.Count(c.Request.Context()); err == nil {
		health["items"] = itemCount
	}

	if h.settingsStore != nil {
		storeHealth := h.settingsStore.Health(c.Request.Context())
		health["settings_store"] = storeHealth
		if storeHealth["status"] != "healthy" {
			slog.Warn("Settings store unhealthy", "error", storeHealth["error"])
			health["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
	}

	c.JSON(http.StatusOK, health)
}

// ProcessJob is the worker boundary: it runs one claimed job to completion.
func (h *Handler) ProcessJob(c *gin.Context) {
	var job database.Job
	if err := c.ShouldBindJSON(&job); err != nil || job.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid job"})
		return
	}

	err := h.worker.Run(c.Request.Context(), job)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, tasks.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, tasks.ErrJobNotRunning):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}

func (h *Handler) Analyze(c *gin.Context) {
	var req analyzer.Request
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" || req.ItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	result, err := h.analyzer.AnalyzeItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, "analyze", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": result, "core_topic": result.CoreTopic})
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query"})
		return
	}

	answer, err := h.rag.Ask(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		respondError(c, "chat", err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *Handler) ListSources(c *gin.Context) {
	list, err := h.sources.List(c.Request.Context())
	if err != nil {
		respondError(c, "list_sources", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": list})
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req sources.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	source, err := h.sources.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, "create_source", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": source})
}

func (h *Handler) DeleteSource(c *gin.Context) {
	if err := h.sources.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "delete_source", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) SetSourceStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	source, err := h.sources.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, "set_source_status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": source})
}

func (h *Handler) TriggerFetch(c *gin.Context) {
	job, err := h.sources.TriggerFetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "trigger_fetch", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (h *Handler) ListInsights(c *gin.Context) {
	pillar := database.Pillar(c.Query("pillar"))
	if pillar != "" && !pillar.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pillar"})
		return
	}

	limit := queryLimit(c, defaultInsightLimit, maxInsightLimit)
	insights, err := h.insights.List(c.Request.Context(), pillar, limit)
	if err != nil {
		respondError(c, "list_insights", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (h *Handler) ListJobs(c *gin.Context) {
	status := database.JobStatus(c.Query("status"))
	switch status {
	case "", database.JobStatusPending, database.JobStatusRunning, database.JobStatusCompleted, database.JobStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job status"})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), status, queryLimit(c, defaultJobLimit, maxJobLimit))
	if err != nil {
		respondError(c, "list_jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) GetSettings(c *gin.Context) {
	status, err := h.settings.Status(c.Request.Context())
	if err != nil {
		respondError(c, "get_settings", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) SaveSettings(c *gin.Context) {
	var req settings.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.settings.Save(c.Request.Context(), req); err != nil {
		respondError(c, "save_settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// queryLimit parses ?limit= and clamps it to [1, maxLimit]. Anything unparseable
// yields the default.
func queryLimit(c *gin.Context, def, maxLimit int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func respondError(c *gin.Context, operation string, err error) {
	var settingsErr *settings.ValidationError
	var sourceErr *sources.ValidationError

	switch {
	case errors.As(err, &settingsErr), errors.As(err, &sourceErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, analyzer.ErrMissingField), errors.Is(err, rag.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sources.ErrDuplicateSource):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, settings.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI provider not configured"})
	default:
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
