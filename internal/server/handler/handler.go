// Package handler implements the playground's JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/middleware"
)

// Syncer runs and reports dataset synchronisation.
type Syncer interface {
	SyncAllWith(ctx context.Context, failFast bool) *loader.Report
	LastReport() (*loader.Report, bool)
}

// History lists persisted sync reports.
type History interface {
	ListReports(ctx context.Context, limit int) ([]*loader.Report, error)
}

// QueryCache is the management surface of the search cache.
type QueryCache interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context, collection string) error
}

type Config struct {
	FailFast     bool
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	registry *dataset.Registry
	sessions *query.Manager
	syncer   Syncer
	history  History
	cache    QueryCache
	cfg      Config
	logger   *slog.Logger
}

// New builds the API handler. history and cache may be nil when the
// corresponding backend is disabled.
func New(registry *dataset.Registry, sessions *query.Manager, syncer Syncer, history History, cache QueryCache, cfg Config) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1000
	}
	return &Handler{
		registry: registry,
		sessions: sessions,
		syncer:   syncer,
		history:  history,
		cache:    cache,
		cfg:      cfg,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

type hitView struct {
	ID       string           `json:"id"`
	Document dataset.Document `json:"document"`
}

type stateView struct {
	Session    string               `json:"session"`
	Text       string               `json:"text"`
	Target     dataset.CollectionID `json:"target"`
	Loading    bool                 `json:"loading"`
	Generation uint64               `json:"generation"`
	Applied    *bool                `json:"applied,omitempty"`
	Count      int                  `json:"count"`
	Results    []hitView            `json:"results"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func newStateView(session string, st query.State) stateView {
	hits := make([]hitView, len(st.Results))
	for i, doc := range st.Results {
		hits[i] = hitView{ID: doc.ID(), Document: doc}
	}
	return stateView{
		Session:    session,
		Text:       st.Text,
		Target:     st.Target,
		Loading:    st.Loading,
		Generation: st.Generation,
		Count:      len(hits),
		Results:    hits,
		UpdatedAt:  st.UpdatedAt,
	}
}

type reportView struct {
	*loader.Report
	Status     string `json:"status"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"duration_ms"`
}

func newReportView(r *loader.Report) reportView {
	return reportView{
		Report:     r,
		Status:     r.Status(),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		Skipped:    r.Skipped(),
		DurationMs: r.Duration().Milliseconds(),
	}
}

// Collections serves GET /api/v1/collections.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"default":     h.registry.Default(),
		"collections": h.registry.Descriptors(),
	})
}

// Search serves GET /api/v1/search?collection=&q=&limit=. The response is
// the session state after the query resolved; engine failures show up as
// an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()
	sessionID := sessionID(r)
	session := h.sessions.Get(sessionID)

	target := dataset.CollectionID(params.Get("collection"))
	if target == "" {
		target = session.State().Target
	}

	limit := h.cfg.DefaultLimit
	if v := params.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}

	text := params.Get("q")
	applied := session.SearchN(ctx, target, text, limit)
	view := newStateView(session.ID(), session.State())
	view.Applied = &applied

	logger.FromContext(ctx).Info("search completed",
		"collection", target,
		"query", text,
		"returned", view.Count,
		"applied", applied,
	)
	h.writeJSON(w, http.StatusOK, view)
}

// Session serves GET /api/v1/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(sessionID(r))
	h.writeJSON(w, http.StatusOK, newStateView(session.ID(), session.State()))
}

// Sync serves POST /api/v1/sync[?failFast=true]. A request made while a
// run is in flight waits for and returns that run's report.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	failFast := h.cfg.FailFast
	if v := r.URL.Query().Get("failFast"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "failFast must be a boolean")
			return
		}
		failFast = b
	}
	// A sync outlives the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.FromContext(r.Context()).Warn("clearing write deadline", "error", err)
	}
	report := h.syncer.SyncAllWith(context.WithoutCancel(r.Context()), failFast)
	h.writeJSON(w, http.StatusOK, newReportView(report))
}

// SyncReport serves GET /api/v1/sync/report.
func (h *Handler) SyncReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.syncer.LastReport()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no sync has completed yet")
		return
	}
	h.writeJSON(w, http.StatusOK, newReportView(report))
}

// SyncHistory serves GET /api/v1/sync/history?limit=.
func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "sync history is disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	reports, err := h.history.ListReports(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync history", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to list sync history")
		return
	}
	views := make([]reportView, len(reports))
	for i, rep := range reports {
		views[i] = newReportView(rep)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": views})
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate serves POST /api/v1/cache/invalidate?collection=.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	name := r.URL.Query().Get("collection")
	id, err := h.registry.Parse(name)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.cache.Invalidate(r.Context(), string(id)); err != nil {
		h.logger.Error("cache invalidation failed", "collection", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "collection": string(id)})
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(middleware.SessionIDHeader); id != "" {
		return id
	}
	return query.DefaultSessionID
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
