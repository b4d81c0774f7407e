package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"model", cfg.Retrieval.Algorithm,
	)

	reader, err := indexer.OpenLatest(cfg.Index.DataDir)
	if err != nil {
		slog.Error("failed to open index", "data_dir", cfg.Index.DataDir, "error", err)
		os.Exit(1)
	}
	defer reader.Close()
	slog.Info("index opened",
		"segment", reader.Path(),
		"docs", reader.TotalDocCount(),
		"terms", reader.Terms(),
	)

	m := metrics.New()
	m.IndexDocumentCount.Set(float64(reader.TotalDocCount()))

	p, err := pipeline.FromConfig(cfg, reader, m)
	if err != nil {
		slog.Error("failed to build search pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(reader.TotalDocCount))
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, readiness will report it down", "error", err)
			checker.Register("postgres", func(context.Context) health.ComponentHealth {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			})
		} else {
			defer db.Close()
			checker.Register("postgres", health.PingCheck(db.Ping))
		}
	}

	h := handler.New(p, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.Run(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
