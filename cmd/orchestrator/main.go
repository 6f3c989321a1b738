// cmd/orchestrator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"admission-orchestrator/internal/common/config"
	"admission-orchestrator/internal/common/database"
	httpclient "admission-orchestrator/internal/common/http"
	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/common/observability"
	"admission-orchestrator/internal/corpus"
	"admission-orchestrator/internal/directory"
	"admission-orchestrator/internal/ledger"
	"admission-orchestrator/internal/notify"
	"admission-orchestrator/internal/orchestrator"
	"admission-orchestrator/internal/policy"
	"admission-orchestrator/internal/server"
	"admission-orchestrator/internal/workflow"
	"admission-orchestrator/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting admission orchestrator...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Knowledge corpus ---
	docs, err := corpus.LoadDir(cfg.Corpus.Dir)
	if err != nil {
		zapLog.Fatal("corpus read failed", zap.Error(err))
	}

	embedder, err := corpus.NewOllamaEmbedder(cfg.Corpus.EmbedderURL, cfg.Corpus.EmbedModel)
	if err != nil {
		// Retrieval degrades to keyword matching; the workflow keeps running.
		zapLog.Warn("embedder unavailable, retrieval will run degraded", zap.Error(err))
		embedder = nil
	}

	index, err := corpus.Load(ctx, docs, embedder, corpus.Options{
		ChunkSize:    cfg.Corpus.ChunkSize,
		ChunkOverlap: cfg.Corpus.ChunkOverlap,
		QueryTimeout: time.Duration(cfg.Corpus.QueryTimeout) * time.Millisecond,
	}, log)
	if err != nil {
		zapLog.Fatal("corpus index failed", zap.Error(err))
	}
	if index.Degraded() {
		zapLog.Warn("corpus index running in keyword fallback mode")
	}

	// --- Policy resolution ---
	var factCache *policy.FactCache
	if cfg.Redis.Enabled {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, policy facts will not be cached", zap.Error(err))
		} else {
			defer redisClient.Close()
			factCache = policy.NewFactCache(redisClient.Client,
				time.Duration(cfg.Policy.CacheTTL)*time.Second, log)
			zapLog.Info("Redis connected successfully")
		}
	}

	extractor := policy.NewExtractor(policy.Fallbacks{
		MinPercentage:   cfg.Policy.MinPercentageFallback,
		MaxLoanFraction: cfg.Policy.MaxLoanFractionFallback,
		CourseFee:       cfg.Policy.CourseFeeFallback,
	}, log)
	resolver := policy.NewResolver(index, extractor, factCache, log)

	// --- Recipient directory ---
	var contacts notify.ContactSource
	if cfg.Directory.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Directory.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Warn("postgres unavailable, recipient directory disabled", zap.Error(err))
		} else {
			defer pg.Close()
			contacts = directory.New(pg.DB, log)
			zapLog.Info("PostgreSQL connected successfully")
		}
	}

	// --- Notification dispatch ---
	templates, err := registry.LoadRegistry(cfg.Template.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry failed", zap.Error(err))
	}

	var generator notify.Generator
	switch cfg.TextGen.Provider {
	case "ollama":
		generator, err = notify.NewOllamaGenerator(cfg.TextGen.BaseURL, cfg.TextGen.Model)
		if err != nil {
			zapLog.Warn("ollama generator unavailable, using template bodies", zap.Error(err))
			generator = nil
		}
	case "http":
		client := httpclient.NewClient(time.Duration(cfg.TextGen.Timeout) * time.Millisecond)
		generator = notify.NewHTTPGenerator(client, cfg.TextGen.BaseURL)
	case "none", "":
		zapLog.Info("text generation disabled, using template bodies")
	default:
		zapLog.Fatal("unknown textgen provider", zap.String("provider", cfg.TextGen.Provider))
	}

	genTimeout := time.Duration(cfg.TextGen.Timeout) * time.Millisecond
	dispatcher := notify.NewDispatcher(generator, templates, contacts, genTimeout, log)

	// --- Core wiring ---
	budget := ledger.New(cfg.Budget.Capacity)
	machine := workflow.NewMachine(resolver, index, budget, cfg.Budget.DefaultLoanRequest, log)
	orch := orchestrator.New(machine, dispatcher, budget, generator, log)

	// --- Metrics & pprof server ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, nil); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- API server ---
	api := server.New(orch, obs, log)
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Admission orchestrator stopped gracefully")
}
