package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-insight/app/ai"
	"github.com/lysyi3m/rss-insight/app/analyzer"
	"github.com/lysyi3m/rss-insight/app/api"
	"github.com/lysyi3m/rss-insight/app/cache"
	"github.com/lysyi3m/rss-insight/app/cfg"
	"github.com/lysyi3m/rss-insight/app/content"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/embedding"
	"github.com/lysyi3m/rss-insight/app/feed"
	"github.com/lysyi3m/rss-insight/app/rag"
	"github.com/lysyi3m/rss-insight/app/settings"
	"github.com/lysyi3m/rss-insight/app/sources"
	"github.com/lysyi3m/rss-insight/app/store"
	"github.com/lysyi3m/rss-insight/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Insight", "version", appCfg.Version, "port", appCfg.Port)

	if err := run(appCfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutdown complete")
}

func run(appCfg *cfg.Cfg) error {
	ctx := context.Background()

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	backend, err := store.OpenBackend(appCfg.DataDir, false)
	if err != nil {
		return err
	}
	defer backend.Close()

	encryptionKey, err := appCfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}

	var kv settings.KV = store.NewKV(backend)
	var redisCache *cache.Cache
	if appCfg.RedisAddr != "" {
		redisCache, err = cache.NewCache(ctx, appCfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		kv = redisCache
	}
	settingsService := settings.NewService(kv, encryptionKey)

	embedder, err := embedding.New(ctx, embedding.Config{
		Provider: appCfg.EmbeddingProvider,
		BaseURL:  appCfg.EmbeddingURL,
		Model:    appCfg.EmbeddingModel,
		APIKey:   appCfg.EmbeddingAPIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent)
	vectors := store.NewVectorIndex(backend)
	contentStore := content.NewStore(database.NewItemRepository(db), fetcher, store.NewBlobStore(backend), vectors, embedder)

	gateway := ai.NewGateway(&http.Client{Timeout: 2 * time.Minute})
	analyzerService := analyzer.NewService(db, settingsService, gateway)
	engine := rag.NewEngine(embedder, vectors, contentStore, settingsService, gateway)

	jobs := tasks.NewJobs(db)
	processor := tasks.NewProcessor(db, jobs, fetcher, feed.NewParser(), contentStore, analyzerService)
	worker := tasks.NewWorker(jobs, processor, appCfg.JobTimeoutDuration())
	sourceService := sources.NewService(db, jobs)

	seeds, err := sources.NewLoader(appCfg.SourcesDir).Load()
	if err != nil {
		return fmt.Errorf("failed to load source seeds: %w", err)
	}
	created, err := sourceService.Sync(ctx, seeds)
	if err != nil {
		return fmt.Errorf("failed to sync source seeds: %w", err)
	}
	slog.Info("Source seeds synced", "seeds", len(seeds), "created", created)

	var dispatcher tasks.Dispatcher = tasks.NewLocalDispatcher(worker)
	if appCfg.WorkerURL != "" {
		dispatchTimeout := appCfg.JobTimeoutDuration() + 30*time.Second
		dispatcher = tasks.NewHTTPDispatcher(&http.Client{Timeout: dispatchTimeout}, appCfg.WorkerURL, appCfg.APIAccessKey)
		slog.Info("Dispatching jobs to remote worker", "url", appCfg.WorkerURL)
	}

	// a job running past its deadline plus dispatch slack has lost its worker
	staleAfter := appCfg.JobTimeoutDuration() + time.Minute
	scheduler, err := tasks.NewScheduler(jobs, dispatcher, appCfg.SchedulerIntervalDuration(), staleAfter)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		scheduler.Stop()
		slog.Info("Scheduler stopped")
	}()

	handler := api.NewHandler(db, sourceService, jobs, worker, analyzerService, engine, settingsService, appCfg.Version)
	if redisCache != nil {
		handler.SetSettingsStoreHealth(redisCache)
	}
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appCfg.JobTimeoutDuration() + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
