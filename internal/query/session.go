// Package query holds per-session query state. A Session turns a collection
// selector and free text into an engine search and exposes the results
// together with a loading flag.
package query

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
)

const defaultLimit = 20

// State is a snapshot of a session. Loading is true only while the most
// recently dispatched query is unresolved.
type State struct {
	Text       string               `json:"text"`
	Target     dataset.CollectionID `json:"target"`
	Results    []dataset.Document   `json:"results"`
	Loading    bool                 `json:"loading"`
	Generation uint64               `json:"generation"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Tracker receives one analytics event per resolved query.
type Tracker interface {
	Track(event analytics.Envelope)
}

type Options struct {
	Limit int
	// Timeout bounds each engine call; zero disables it.
	Timeout time.Duration
	Metrics *metrics.Metrics
	Tracker Tracker
}

type Session struct {
	id       string
	engine   engine.Engine
	registry *dataset.Registry
	opts     Options

	mu    sync.Mutex
	state State
}

func NewSession(id string, eng engine.Engine, registry *dataset.Registry, opts Options) *Session {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	return &Session{
		id:       id,
		engine:   eng,
		registry: registry,
		opts:     opts,
		state: State{
			Target:  registry.Default(),
			Results: []dataset.Document{},
		},
	}
}

func (s *Session) ID() string { return s.id }

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Results = slices.Clone(s.state.Results)
	return st
}

// Search runs text against target and applies the outcome if no newer
// query was dispatched in the meantime. Failures leave an empty result
// set and are logged, never returned. The return value reports whether
// the response was applied.
func (s *Session) Search(ctx context.Context, target dataset.CollectionID, text string) bool {
	return s.SearchN(ctx, target, text, 0)
}

// SearchN is Search with an explicit hit limit; limit <= 0 uses the
// session default.
func (s *Session) SearchN(ctx context.Context, target dataset.CollectionID, text string, limit int) bool {
	if limit <= 0 {
		limit = s.opts.Limit
	}
	s.mu.Lock()
	s.state.Generation++
	gen := s.state.Generation
	s.state.Text = text
	if s.registry.Contains(target) {
		s.state.Target = target
	}
	s.state.Loading = true
	s.mu.Unlock()

	log := logger.FromContext(ctx).With("component", "query", "collection", target, "generation", gen)
	start := time.Now()
	hits, err := s.dispatch(ctx, target, text, limit)
	latency := time.Since(start)

	s.mu.Lock()
	if latest := s.state.Generation; gen != latest {
		s.mu.Unlock()
		log.Debug("discarding superseded response", "latest", latest)
		s.observe(ctx, target, text, metrics.OutcomeStale, latency, len(hits), err)
		return false
	}
	s.state.Loading = false
	s.state.UpdatedAt = time.Now().UTC()
	if err != nil {
		s.state.Results = []dataset.Document{}
	} else {
		s.state.Results = hits
	}
	s.mu.Unlock()

	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		log.Warn("search failed", "query", text, "error", err)
	case len(hits) == 0:
		outcome = metrics.OutcomeZeroResult
	}
	s.observe(ctx, target, text, outcome, latency, len(hits), err)
	return true
}

func (s *Session) dispatch(ctx context.Context, target dataset.CollectionID, text string, limit int) ([]dataset.Document, error) {
	if !s.registry.Contains(target) {
		return nil, apperrors.NewEngineError(apperrors.OpSearch, string(target),
			errors.Join(apperrors.ErrUnknownCollection, apperrors.ErrCollectionNotFound))
	}
	resp, err := resilience.Call(ctx, s.opts.Timeout, "search "+string(target),
		func(ctx context.Context) (*engine.SearchResponse, error) {
			return s.engine.Search(ctx, string(target), engine.SearchRequest{Query: text, Limit: limit})
		})
	if err != nil {
		var engErr *apperrors.EngineError
		if !errors.As(err, &engErr) {
			err = apperrors.NewEngineError(apperrors.OpSearch, string(target), err)
		}
		return nil, err
	}
	if resp.Hits == nil {
		return []dataset.Document{}, nil
	}
	return resp.Hits, nil
}

func (s *Session) observe(ctx context.Context, target dataset.CollectionID, text, outcome string, latency time.Duration, hits int, err error) {
	s.opts.Metrics.ObserveSearch(string(target), outcome, latency, hits)
	if s.opts.Tracker == nil {
		return
	}
	sessionID := logger.SessionID(ctx)
	if sessionID == "" {
		sessionID = s.id
	}
	s.opts.Tracker.Track(analytics.Search(analytics.SearchEvent{
		Collection: string(target),
		Query:      text,
		Hits:       hits,
		LatencyMs:  latency.Milliseconds(),
		Failed:     err != nil,
		Stale:      outcome == metrics.OutcomeStale,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
		SessionID:  sessionID,
	}))
}
