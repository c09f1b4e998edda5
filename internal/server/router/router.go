// Package router wires the playground routes and applies the middleware
// chain (RequestID → CORS → Metrics). Query routes are additionally
// bounded by Timeout; sync runs are not. Search and sync share the
// per-client rate limit.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/middleware"
)

type Deps struct {
	API       *handler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	// FixturesDir is served under /data/ when set.
	FixturesDir    string
	CORSOrigins    []string
	RequestTimeout time.Duration
	// RateLimiter guards search and sync; nil disables it.
	RateLimiter *middleware.Limiter
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /data/{file}                fixture files
//	GET    /api/v1/collections         registered collections
//	GET    /api/v1/search              run a query in the caller's session
//	GET    /api/v1/session             caller's session state
//	POST   /api/v1/sync                run SyncAll
//	GET    /api/v1/sync/report         last sync report
//	GET    /api/v1/sync/history        persisted sync reports
//	GET    /api/v1/analytics           aggregated analytics
//	GET    /api/v1/cache/stats         query cache counters
//	POST   /api/v1/cache/invalidate    drop one collection's cached queries
//	GET    /health/live, /health/ready
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	timed := func(h http.HandlerFunc) http.Handler {
		return middleware.Timeout(d.RequestTimeout)(h)
	}
	limited := middleware.RateLimit(d.RateLimiter)

	mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())

	if d.FixturesDir != "" {
		mux.Handle("GET /data/", http.StripPrefix("/data/", http.FileServer(http.Dir(d.FixturesDir))))
	}

	mux.Handle("GET /api/v1/collections", timed(d.API.Collections))
	mux.Handle("GET /api/v1/search", limited(timed(d.API.Search)))
	mux.Handle("GET /api/v1/session", timed(d.API.Session))

	mux.Handle("POST /api/v1/sync", limited(http.HandlerFunc(d.API.Sync)))
	mux.Handle("GET /api/v1/sync/report", timed(d.API.SyncReport))
	mux.Handle("GET /api/v1/sync/history", timed(d.API.SyncHistory))

	mux.Handle("GET /api/v1/analytics", timed(d.Analytics.Stats))

	mux.Handle("GET /api/v1/cache/stats", timed(d.API.CacheStats))
	mux.Handle("POST /api/v1/cache/invalidate", timed(d.API.CacheInvalidate))

	var chain http.Handler = mux
	chain = middleware.Metrics(d.Metrics)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins...))(chain)
	chain = middleware.RequestID(chain)
	return chain
}
