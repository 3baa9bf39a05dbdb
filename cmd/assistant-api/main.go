// Package main provides the OpsLoom assistant API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/opsloom/assistant-engine/cmd/assistant-api/handlers"
	"github.com/opsloom/assistant-engine/cmd/assistant-api/middleware"
	"github.com/opsloom/assistant-engine/internal/assistant"
	"github.com/opsloom/assistant-engine/internal/cache"
	"github.com/opsloom/assistant-engine/internal/config"
	"github.com/opsloom/assistant-engine/internal/llm"
	"github.com/opsloom/assistant-engine/internal/observability"
	"github.com/opsloom/assistant-engine/internal/storage"
)

func main() {
	// Load .env if present, before config reads the environment
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("model", cfg.AI.Model).
		Msg("Starting assistant engine API")

	// Database connection
	db, err := storage.Open(storage.OpenConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Context cache
	var contextCache cache.Client
	switch cfg.Cache.Driver {
	case "redis":
		redisCache, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Redis connection failed")
		}
		contextCache = redisCache
	default:
		contextCache = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}
	defer contextCache.Close()

	// Chat-completion gateway
	chat, err := llm.NewClient(llm.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Gateway client setup failed")
	}

	// Assistant pipeline
	repos := storage.NewRepositories(db)
	service := assistant.NewService(logger, chat, repos, contextCache, assistant.Config{
		MaxArticles:       cfg.Assistant.MaxArticles,
		MaxInsights:       cfg.Assistant.MaxInsights,
		MaxWorkflowRuns:   cfg.Assistant.MaxWorkflowRuns,
		MaxHistoryTurns:   cfg.Assistant.MaxHistoryTurns,
		InsightThreshold:  cfg.Assistant.InsightThreshold,
		DefaultConfidence: cfg.Assistant.DefaultConfidence,
		Temperature:       cfg.AI.Temperature,
		MaxTokens:         cfg.AI.MaxTokens,
		ContextTTL:        cfg.Cache.ContextTTL,
	})

	handler := handlers.NewAssistantHandler(logger, service, repos.Interactions)
	router := NewRouter(logger, handler, db, cfg.Server.ReadTimeout, middleware.AuthConfig{
		Enabled: cfg.Server.AuthToken != "",
		Token:   cfg.Server.AuthToken,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
