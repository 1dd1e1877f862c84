package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsift/app/api"
	"feedsift/app/cache"
	"feedsift/app/cfg"
	"feedsift/app/database"
	"feedsift/app/feed"
	"feedsift/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting feedsift", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)

	strategy, ok := feed.ParseStrategy(appCfg.DedupStrategy)
	if !ok {
		slog.Warn("Unknown deduplication strategy, using medium", "strategy", appCfg.DedupStrategy)
		strategy = feed.StrategyMedium
	}

	deduplicator := feed.NewDeduplicator(entryRepo, feed.DedupOpts{
		Strategy:                 strategy,
		TitleAlgorithm:           appCfg.TitleHashAlgorithm,
		ContentAlgorithm:         appCfg.ContentHashAlgorithm,
		DisableLinkCheck:         appCfg.DisableLinkCheck,
		DisableTitleCheck:        appCfg.DisableTitleCheck,
		DisableContentCheck:      appCfg.DisableContentCheck,
		TitleSimilarityThreshold: appCfg.TitleSimilarityThreshold,
	})

	parser := feed.NewParser(feed.ParserOpts{
		MaxContentLength:   appCfg.MaxContentLength,
		KeepHTML:           appCfg.KeepHTML,
		PreserveParagraphs: !appCfg.FlattenParagraphs,
	})

	fetcher := tasks.NewFetcher(&http.Client{}, appCfg.UserAgent)
	contentExtractor := feed.NewContentExtractor()

	scheduler := tasks.NewScheduler(configCache, feedRepo, entryRepo, fetcher, parser,
		deduplicator, contentExtractor, tasks.SchedulerOpts{
			Interval:                  time.Duration(appCfg.SchedulerInterval) * time.Second,
			WorkerCount:               appCfg.WorkerCount,
			FilterCacheSize:           appCfg.FilterCacheSize,
			FeedErrorLimit:            appCfg.FeedErrorLimit,
			ExtractedContentMaxLength: appCfg.ExtractedContentMaxLength,
		})
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	var feedCache api.CacheInterface
	if appCfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisCache, err := cache.NewCache(ctx, appCfg.RedisAddr)
		cancel()
		if err != nil {
			slog.Warn("Redis unavailable, serving without feed cache", "addr", appCfg.RedisAddr, "error", err)
		} else {
			feedCache = redisCache
			defer redisCache.Close()
		}
	}

	generator := api.NewGenerator(api.GeneratorOpts{
		BaseURL: appCfg.BaseUrl,
		Port:    appCfg.Port,
		Version: appCfg.Version,
	})

	handler := api.NewHandler(configCache, feedRepo, entryRepo, generator, deduplicator, scheduler, feedCache)
	engine := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
