// Command playground runs the search playground service.
//
// It serves the fixture directory under /data/, seeds the configured
// datasets into the search engine in the background and exposes the query
// API, analytics and health endpoints.
//
// Usage:
//
//	go run ./cmd/playground [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/cache"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/meili"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/fixtures"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader/store"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/server/router"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search playground", "port", cfg.Server.Port, "engine", cfg.Engine.Driver)

	if err := run(cfg); err != nil {
		slog.Error("playground exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("search playground stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := dataset.FromConfig(cfg.Fixtures)
	if err != nil {
		return fmt.Errorf("building dataset registry: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	base, err := buildEngine(cfg.Engine, m)
	if err != nil {
		return err
	}
	checker.Register("engine", health.PingCheck(base.Ping, true))
	if me, ok := base.(*meili.Engine); ok {
		checker.Register("engine_breaker", breakerCheck(me))
	}
	eng := base

	var queryCache handler.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cached := cache.New(base, redisClient, cfg.Redis.CacheTTL, cfg.Engine.Timeout, m)
			eng, queryCache = cached, cached
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	collector, closeAnalytics := buildAnalytics(ctx, cfg.Kafka, aggregator, m)
	defer closeAnalytics()

	var history handler.History
	var historyStore loader.HistoryStore
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, sync history disabled", "error", err)
		} else {
			defer db.Close()
			s := store.New(db)
			if err := s.EnsureSchema(ctx); err != nil {
				return err
			}
			history, historyStore = s, s
			checker.Register("postgres", health.PingCheck(db.Ping, false))
			slog.Info("sync history enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", cfg.Server.Port, err)
	}

	baseURL := cfg.Fixtures.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	}
	fetcher := fixtures.NewFetcher(baseURL, cfg.Engine.Timeout, resilience.RetryConfig{
		MaxAttempts:  cfg.Sync.Retry.MaxAttempts,
		InitialDelay: cfg.Sync.Retry.InitialDelay,
		MaxDelay:     cfg.Sync.Retry.MaxDelay,
	})
	l := loader.New(eng, fetcher, registry, loader.Options{
		PrimaryKey: cfg.Engine.PrimaryKey,
		FailFast:   cfg.Sync.FailFast,
		Metrics:    m,
		Tracker:    collector,
		History:    historyStore,
	})
	checker.Register("sync", lastSyncCheck(l))

	sessions := query.NewManager(eng, registry, query.Options{
		Limit:   cfg.Search.DefaultLimit,
		Timeout: cfg.Search.QueryTimeout,
		Metrics: m,
		Tracker: collector,
	}, cfg.Search.SessionTTL)

	api := handler.New(registry, sessions, l, history, queryCache, handler.Config{
		FailFast:     cfg.Sync.FailFast,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
	}

	server := &http.Server{
		Handler: router.New(router.Deps{
			API:            api,
			Analytics:      analytics.NewHandler(aggregator),
			Health:         checker,
			Metrics:        m,
			FixturesDir:    cfg.Fixtures.Dir,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.WriteTimeout,
			RateLimiter:    limiter,
		}),
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

	if cfg.Sync.OnStartup {
		go func() {
			report := l.SyncAll(ctx)
			if err := report.Err(); err != nil {
				slog.Warn("startup sync incomplete", "run_id", report.ID, "status", report.Status(), "error", err)
			}
		}()
	}

	slog.Info("search playground listening", "addr", listener.Addr().String(), "fixtures", baseURL)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func buildEngine(cfg config.EngineConfig, m *metrics.Metrics) (engine.Engine, error) {
	switch cfg.Driver {
	case config.DriverMeili:
		slog.Info("using meilisearch engine", "url", cfg.URL)
		return meili.New(cfg, m), nil
	case config.DriverEmbedded:
		slog.Info("using embedded engine")
		return embedded.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", cfg.Driver)
	}
}

// buildAnalytics wires the collector to Kafka when enabled, with a consumer
// feeding the aggregator, and to the aggregator directly otherwise.
func buildAnalytics(ctx context.Context, cfg config.KafkaConfig, aggregator *analytics.Aggregator, m *metrics.Metrics) (*analytics.Collector, func()) {
	if !cfg.Enabled {
		collector := analytics.NewCollector(analytics.NewDirectSink(aggregator), 10000, m)
		collector.Start(ctx)
		slog.Info("analytics collector started", "sink", "direct")
		return collector, collector.Close
	}

	topic := cfg.Topics.AnalyticsEvents
	producer := kafka.NewProducer(cfg, topic)
	collector := analytics.NewCollector(analytics.NewKafkaSink(producer), 10000, m)
	collector.Start(ctx)

	consumer := kafka.NewConsumer(cfg, topic, aggregator.HandleMessage())
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics collector started", "sink", "kafka", "topic", topic)

	return collector, func() {
		collector.Close()
		if err := producer.Close(); err != nil {
			slog.Error("closing analytics producer", "error", err)
		}
		if err := consumer.Close(); err != nil {
			slog.Error("closing analytics consumer", "error", err)
		}
	}
}

// breakerCheck reports degraded while the engine's circuit breaker is not
// closed.
func breakerCheck(e *meili.Engine) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		state := e.BreakerState()
		if state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "circuit " + state.String()}
	}
}

// lastSyncCheck reports degraded until a sync has finished cleanly.
func lastSyncCheck(l *loader.Loader) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		report, ok := l.LastReport()
		if !ok {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no sync completed yet"}
		}
		age := time.Since(report.FinishedAt).Round(time.Second)
		msg := fmt.Sprintf("%s %s ago", report.Status(), age)
		if report.Status() != loader.StatusOK {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	}
}
