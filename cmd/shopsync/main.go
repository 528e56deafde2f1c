// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/shopsync-go/internal/cache"
	"github.com/olegiv/shopsync-go/internal/config"
	"github.com/olegiv/shopsync-go/internal/handler/api"
	"github.com/olegiv/shopsync-go/internal/lightspeed"
	"github.com/olegiv/shopsync-go/internal/logging"
	"github.com/olegiv/shopsync-go/internal/middleware"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/scheduler"
	"github.com/olegiv/shopsync-go/internal/service"
	"github.com/olegiv/shopsync-go/internal/store"
	catalog "github.com/olegiv/shopsync-go/internal/sync"
	"github.com/olegiv/shopsync-go/internal/translate"
	"github.com/olegiv/shopsync-go/internal/version"
	"github.com/olegiv/shopsync-go/internal/webhook"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "shopsync - multi-shop product synchronization service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_DB_PATH            SQLite database path (default: ./data/shopsync.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_SERVER_PORT        Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_SOURCE_SHOP_TLD    TLD of the source shop (default: nl)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_LS_KEY_<TLD>       Shop API key per shop TLD\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_LS_SECRET_<TLD>    Shop API secret per shop TLD\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_OPENAI_API_KEY     Enables the translation endpoint (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOPSYNC_REDIS_URL          Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/olegiv/shopsync-go\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		info := version.Get()
		_, _ = fmt.Printf("shopsync %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also mirror WARN and ERROR records into the
	// operation log.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := store.Seed(ctx, db, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	queries := store.New(db)

	cacheManager := cache.NewManager(cache.Options{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:    cfg.CacheMaxSize,
	}, queries)
	defer func() {
		if err := cacheManager.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	// One shop API client per shop, authenticated with that shop's
	// credentials from the environment.
	clients := func(shop model.Shop) (*lightspeed.Client, error) {
		creds, err := cfg.Credentials(shop.TLD)
		if err != nil {
			return nil, err
		}
		return lightspeed.NewClient(cfg.ShopAPIBase, creds.APIKey, creds.APISecret), nil
	}

	var translator translate.Provider
	if cfg.TranslationEnabled() {
		translator = translate.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.TranslationModel)
		slog.Info("translation provider configured", "model", cfg.TranslationModel)
	} else {
		slog.Info("no translation provider configured, translation endpoint disabled")
	}

	syncer := catalog.NewService(queries, catalog.ClientFactory(clients), logger)
	events := service.NewEventService(db)
	products := service.NewProductService(queries, cfg.SourceShopTLD)
	apply := service.NewApplyService(queries, service.ClientFactory(clients), syncer, events, logger)
	apply.SetImageCache(cacheManager.Images)
	images := service.NewImageService(queries, service.ClientFactory(clients), cacheManager)
	edit := service.NewEditService(queries, products, translator, logger)

	dispatcher := webhook.NewDispatcher(db, logger, webhook.DefaultConfig())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	syncer.SetNotifier(dispatcher)

	debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig())
	defer debouncer.Stop()
	apply.SetNotifier(webhook.ProductNotifier{Debouncer: debouncer})

	if cfg.SyncEnabled {
		retention := time.Duration(cfg.EventRetentionDays) * 24 * time.Hour
		sched := scheduler.New(syncer, events, logger, cfg.SyncCron, retention)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		slog.Info("scheduled catalog sync disabled")
	}

	apiHandler := api.NewHandler(db, products, apply, events, syncer, translator, logger)
	apiHandler.SetImageService(images)
	apiHandler.SetEditService(edit)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.NewGlobalRateLimiter(50, 100).Middleware())

	r.Mount("/api/v1", apiHandler.Routes())
	r.Get("/health", apiHandler.Health)
	r.Get("/health/live", apiHandler.Liveness)
	r.Get("/health/ready", apiHandler.Readiness)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
