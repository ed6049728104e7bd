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

	"github.com/prepnexus/qbank/internal/embedding"
	"github.com/prepnexus/qbank/internal/httpapi"
	"github.com/prepnexus/qbank/internal/ingest"
	"github.com/prepnexus/qbank/internal/platform/cache"
	"github.com/prepnexus/qbank/internal/platform/config"
	"github.com/prepnexus/qbank/internal/platform/database"
	"github.com/prepnexus/qbank/internal/resolver"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(logHandler(cfg.Log)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	store, err := taxonomy.NewPostgresStore(db.Pool)
	if err != nil {
		slog.Error("failed to create topic store", "error", err)
		os.Exit(1)
	}

	readiness := []httpapi.Pinger{db}

	var vectorCache resolver.VectorCache
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			// The cache only saves embedding calls; the service runs without it.
			slog.Warn("cache unavailable, continuing without vector cache", "error", err)
		} else {
			defer c.Close()
			vectorCache = c
			readiness = append(readiness, c)
		}
	}

	router := embedding.NewRouter()
	if cfg.Embedding.Google.APIKey != "" {
		router.Register("google", embedding.NewGoogleProvider(
			cfg.Embedding.Google.APIKey,
			embedding.WithGoogleModel(cfg.Embedding.Google.Model),
		))
	}
	if cfg.Embedding.OpenAI.APIKey != "" {
		opts := []embedding.OpenAIOption{embedding.WithModel(cfg.Embedding.OpenAI.Model)}
		if cfg.Embedding.OpenAI.BaseURL != "" {
			opts = append(opts, embedding.WithBaseURL(cfg.Embedding.OpenAI.BaseURL))
		}
		router.Register("openai", embedding.NewOpenAIProvider(cfg.Embedding.OpenAI.APIKey, opts...))
	}
	if !router.HasProvider() {
		slog.Warn("no embedding provider configured; topic resolution will return no matches")
	}

	res := resolver.New(resolver.Config{
		Embedder:  router,
		Store:     store,
		Cache:     vectorCache,
		VectorTTL: time.Duration(cfg.Cache.VectorTTL) * time.Minute,
	})

	runner := ingest.NewRunner(ingest.RunnerConfig{
		Importer: ingest.NewImporter(ingest.PoolBeginner{Pool: db.Pool}),
		Topics:   store,
	})

	api := httpapi.New(httpapi.Config{
		Topics:    store,
		Resolver:  res,
		Runner:    runner,
		Readiness: readiness,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func logHandler(cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
