package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/config"
	"github.com/datapilot-ai/datapilot/internal/connector"
	"github.com/datapilot-ai/datapilot/internal/connector/columns"
	"github.com/datapilot-ai/datapilot/internal/connector/preview"
	"github.com/datapilot-ai/datapilot/internal/connector/warehouse"
	dbRedis "github.com/datapilot-ai/datapilot/internal/db/redis"
	logpkg "github.com/datapilot-ai/datapilot/internal/logger"
	"github.com/datapilot-ai/datapilot/internal/metrics"
	aggregaterepo "github.com/datapilot-ai/datapilot/internal/repository/aggregate"
	documentrepo "github.com/datapilot-ai/datapilot/internal/repository/document"
	chiTransport "github.com/datapilot-ai/datapilot/internal/transport/chi"
	openaiTransport "github.com/datapilot-ai/datapilot/internal/transport/openai"
	aggregateuc "github.com/datapilot-ai/datapilot/internal/usecase/aggregate"
	answeruc "github.com/datapilot-ai/datapilot/internal/usecase/answer"
	classifyuc "github.com/datapilot-ai/datapilot/internal/usecase/classify"
	engineuc "github.com/datapilot-ai/datapilot/internal/usecase/engine"
	healthuc "github.com/datapilot-ai/datapilot/internal/usecase/health"
	scanuc "github.com/datapilot-ai/datapilot/internal/usecase/scan"
	strategyuc "github.com/datapilot-ai/datapilot/internal/usecase/strategy"
	"github.com/datapilot-ai/datapilot/internal/vectorstore/qdrant"
	"github.com/datapilot-ai/datapilot/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting datapilot API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("source_driver", cfg.Source.Driver),
		zap.String("qdrant_endpoint", cfg.Qdrant.Endpoint),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	vectors, err := qdrant.New(qdrant.Config{
		Endpoint: cfg.Qdrant.Endpoint,
		APIKey:   cfg.Qdrant.APIKey,
		Timeout:  time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store client", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterQueryMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		Logger:  logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("completion_model", cfg.Completion.Model),
	)

	resolver := columns.NewSubstringResolver()
	conn, cleanup, err := buildConnector(cfg, store, resolver, logger)
	if err != nil {
		logger.Fatal("Failed to create source connector", zap.Error(err))
	}
	defer cleanup()

	// Repositories over the vector store
	aggRepo := aggregaterepo.New(vectors, cfg.Embedding.Dimensions)
	docRepo := documentrepo.New(vectors)

	// Use case services
	scanner := scanuc.New(conn, resolver, logger)
	classifier := classifyuc.New()
	selector := strategyuc.New(classifier, aggRepo, logger)
	eng := engineuc.New(docRepo, aggRepo, scanner, embedder, logger).
		WithTopK(cfg.Engine.TopK).
		WithScoreThreshold(cfg.Engine.ScoreThreshold)
	builder := aggregateuc.New(aggRepo, conn, scanner, embedder, logger).
		WithConcurrency(cfg.Rebuild.Concurrency)
	answers := answeruc.New(selector, eng, completer, logger).
		WithModel(cfg.Completion.Model, cfg.Completion.Temperature, cfg.Completion.MaxTokens).
		WithContextDocs(cfg.Engine.ContextDocs)

	healthSvc := healthuc.New(store, vectors, embedder)

	server := chiTransport.NewServer(answers, builder, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildConnector picks the data source backend from config.
func buildConnector(
	cfg config.Config,
	store *dbRedis.Store,
	resolver columns.Resolver,
	logger *zap.Logger,
) (connector.Connector, func(), error) {
	switch cfg.Source.Driver {
	case "warehouse":
		sqlDB, err := sql.Open("pgx", cfg.Warehouse.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open warehouse: %w", err)
		}
		return warehouse.New(sqlDB, cfg.Source.Table, resolver, logger),
			func() { _ = sqlDB.Close() }, nil
	case "preview":
		return preview.New(store, resolver, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source driver %q", cfg.Source.Driver)
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
