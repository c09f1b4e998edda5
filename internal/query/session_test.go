package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// gatedEngine answers searches from a fixed table. A query with a gate
// blocks until the gate is closed or the context ends.
type gatedEngine struct {
	engine.Engine
	mu      sync.Mutex
	results map[string][]dataset.Document
	gates   map[string]chan struct{}
	err     error
	calls   int
	during  func()
	started chan string
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{
		results: map[string][]dataset.Document{
			"a": {{"id": float64(1), "name": "Alice"}},
			"b": {{"id": float64(2), "name": "Bob"}},
		},
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 8),
	}
}

func (e *gatedEngine) gate(query string) chan struct{} {
	ch := make(chan struct{})
	e.mu.Lock()
	e.gates[query] = ch
	e.mu.Unlock()
	return ch
}

func (e *gatedEngine) Search(ctx context.Context, name string, req engine.SearchRequest) (*engine.SearchResponse, error) {
	e.mu.Lock()
	e.calls++
	gate := e.gates[req.Query]
	during := e.during
	err := e.err
	hits := e.results[req.Query]
	e.mu.Unlock()

	e.started <- req.Query
	if during != nil {
		during()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &engine.SearchResponse{Hits: hits, Query: req.Query, Limit: req.Limit}, nil
}

type tracker struct {
	mu     sync.Mutex
	events []analytics.Envelope
}

func (t *tracker) Track(e analytics.Envelope) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

func registry(t *testing.T) *dataset.Registry {
	t.Helper()
	reg, err := dataset.NewRegistry(dataset.DefaultDescriptors())
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestNewSessionState(t *testing.T) {
	s := NewSession("s1", newGatedEngine(), registry(t), Options{})
	st := s.State()
	if st.Target != dataset.Users || st.Loading || st.Results == nil || len(st.Results) != 0 {
		t.Errorf("initial state = %+v", st)
	}
}

func TestSearchReplacesResults(t *testing.T) {
	eng := newGatedEngine()
	s := NewSession("s1", eng, registry(t), Options{})
	ctx := context.Background()

	if !s.Search(ctx, dataset.Users, "a") {
		t.Fatal("response not applied")
	}
	st := s.State()
	if st.Loading || st.Text != "a" || st.Generation != 1 || len(st.Results) != 1 || st.Results[0]["name"] != "Alice" {
		t.Fatalf("state after a = %+v", st)
	}

	s.Search(ctx, dataset.Posts, "b")
	st = s.State()
	if st.Target != dataset.Posts || len(st.Results) != 1 || st.Results[0]["name"] != "Bob" {
		t.Errorf("results were merged or not replaced: %+v", st.Results)
	}
}

func TestLoadingDuringDispatch(t *testing.T) {
	for _, fail := range []bool{false, true} {
		eng := newGatedEngine()
		if fail {
			eng.err = errors.New("engine unavailable")
		}
		s := NewSession("s1", eng, registry(t), Options{})
		var during State
		eng.during = func() { during = s.State() }

		s.Search(context.Background(), dataset.Users, "a")
		if !during.Loading {
			t.Errorf("fail=%v: loading false during dispatch", fail)
		}
		if s.State().Loading {
			t.Errorf("fail=%v: loading still true after resolution", fail)
		}
	}
}

func TestSearchFailureDegradesToEmpty(t *testing.T) {
	eng := newGatedEngine()
	m := metrics.New(prometheus.NewRegistry())
	s := NewSession("s1", eng, registry(t), Options{Metrics: m})
	ctx := context.Background()
	s.Search(ctx, dataset.Users, "a")

	eng.err = errors.New("connection reset")
	if !s.Search(ctx, dataset.Users, "b") {
		t.Fatal("failed response should still be applied")
	}
	st := s.State()
	if st.Results == nil || len(st.Results) != 0 || st.Loading {
		t.Errorf("state after failure = %+v", st)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("users", metrics.OutcomeError)); got != 1 {
		t.Errorf("error outcomes = %v", got)
	}
}

func TestUnknownTargetDegrades(t *testing.T) {
	eng := newGatedEngine()
	s := NewSession("s1", eng, registry(t), Options{})
	s.Search(context.Background(), dataset.Posts, "")
	s.Search(context.Background(), "comments", "a")

	st := s.State()
	if len(st.Results) != 0 || st.Loading || st.Text != "a" {
		t.Errorf("state = %+v", st)
	}
	if st.Target != dataset.Posts {
		t.Errorf("target = %q, want the last valid collection kept", st.Target)
	}
	if eng.calls != 1 {
		t.Errorf("engine called %d times, want 1 (none for the unregistered collection)", eng.calls)
	}
}

func TestLatestQueryWins(t *testing.T) {
	eng := newGatedEngine()
	tr := &tracker{}
	m := metrics.New(prometheus.NewRegistry())
	s := NewSession("s1", eng, registry(t), Options{Tracker: tr, Metrics: m})
	releaseA := eng.gate("a")

	applied := make(chan bool, 1)
	go func() { applied <- s.Search(context.Background(), dataset.Users, "a") }()
	<-eng.started

	if !s.Search(context.Background(), dataset.Users, "b") {
		t.Fatal("latest response not applied")
	}
	close(releaseA)
	if <-applied {
		t.Error("superseded response was applied")
	}

	st := s.State()
	if st.Text != "b" || st.Loading || len(st.Results) != 1 || st.Results[0]["name"] != "Bob" {
		t.Errorf("state = %+v", st)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("users", metrics.OutcomeStale)); got != 1 {
		t.Errorf("stale outcomes = %v", got)
	}
	stale := 0
	for _, e := range tr.events {
		if e.Search != nil && e.Search.Stale {
			stale++
		}
	}
	if len(tr.events) != 2 || stale != 1 {
		t.Errorf("tracked %d events, %d stale", len(tr.events), stale)
	}
}

func TestLoadingHeldUntilLatestResolves(t *testing.T) {
	eng := newGatedEngine()
	s := NewSession("s1", eng, registry(t), Options{})
	releaseA, releaseB := eng.gate("a"), eng.gate("b")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Search(context.Background(), dataset.Users, "a") }()
	<-eng.started
	go func() { defer wg.Done(); s.Search(context.Background(), dataset.Users, "b") }()
	<-eng.started

	close(releaseA)
	time.Sleep(20 * time.Millisecond)
	if !s.State().Loading {
		t.Error("stale response cleared loading while the latest query is in flight")
	}
	close(releaseB)
	wg.Wait()
	if st := s.State(); st.Loading || st.Results[0]["name"] != "Bob" {
		t.Errorf("state = %+v", st)
	}
}

func TestQueryTimeout(t *testing.T) {
	eng := newGatedEngine()
	eng.gate("a")
	s := NewSession("s1", eng, registry(t), Options{Timeout: 20 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		s.Search(context.Background(), dataset.Users, "a")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("search did not time out")
	}
	if st := s.State(); st.Loading || len(st.Results) != 0 {
		t.Errorf("state = %+v", st)
	}
}

func TestEndToEndWithEmbeddedEngine(t *testing.T) {
	ctx := context.Background()
	eng := embedded.New()
	if err := eng.AddDocuments(ctx, "users", []dataset.Document{{"id": float64(1), "name": "Alice"}}); err != nil {
		t.Fatal(err)
	}
	s := NewSession("s1", eng, registry(t), Options{})

	s.Search(ctx, dataset.Users, "Alice")
	st := s.State()
	if len(st.Results) != 1 || st.Results[0]["name"] != "Alice" {
		t.Fatalf("results = %v", st.Results)
	}

	s.Search(ctx, dataset.Users, "")
	if len(s.State().Results) != 1 {
		t.Error("empty query should return the default result set")
	}

	// posts was never loaded
	s.Search(ctx, dataset.Posts, "Alice")
	if st := s.State(); len(st.Results) != 0 || st.Loading {
		t.Errorf("missing collection state = %+v", st)
	}
}

func TestManager(t *testing.T) {
	m := NewManager(newGatedEngine(), registry(t), Options{}, 0)
	a := m.Get("alpha")
	if m.Get("alpha") != a {
		t.Error("same id returned different sessions")
	}
	if m.Get("") != m.Get(DefaultSessionID) {
		t.Error("empty id should map to the default session")
	}
	if len(m.sessions) != 2 || m.sessions["alpha"] == nil || m.sessions[DefaultSessionID] == nil {
		t.Errorf("sessions = %v", m.sessions)
	}
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	m := NewManager(newGatedEngine(), registry(t), Options{}, 10*time.Millisecond)
	old := m.Get("old")
	time.Sleep(30 * time.Millisecond)
	m.Get("fresh")
	if len(m.sessions) != 1 || m.sessions["fresh"] == nil {
		t.Errorf("sessions = %v", m.sessions)
	}
	if m.Get("old") == old {
		t.Error("evicted session was reused")
	}
}
