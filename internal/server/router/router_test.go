package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/fixtures"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

type playground struct {
	server     *httptest.Server
	aggregator *analytics.Aggregator
}

// newPlayground serves users.json and posts.json; tasks.json is missing so
// one dataset always fails to sync.
func newPlayground(t *testing.T) *playground {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"users.json": `[{"id":1,"name":"Alice","email":"alice@example.com"},{"id":2,"name":"Bob"}]`,
		"posts.json": `[{"id":1,"title":"Hello world","userId":1}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fixtureSrv := httptest.NewServer(http.StripPrefix("/data/", http.FileServer(http.Dir(dir))))
	t.Cleanup(fixtureSrv.Close)

	reg, err := dataset.NewRegistry(dataset.DefaultDescriptors())
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New(prometheus.NewRegistry())
	agg := analytics.NewAggregator()
	tracker := analytics.NewCollector(analytics.NewDirectSink(agg), 64, m)
	tracker.Start(t.Context())
	t.Cleanup(tracker.Close)

	eng := embedded.New()
	fetcher := fixtures.NewFetcher(fixtureSrv.URL, time.Second, resilience.RetryConfig{MaxAttempts: 1})
	l := loader.New(eng, fetcher, reg, loader.Options{Metrics: m, Tracker: tracker})
	sessions := query.NewManager(eng, reg, query.Options{Metrics: m, Tracker: tracker}, time.Hour)

	checker := health.NewChecker()
	checker.Register("engine", health.PingCheck(eng.Ping, true))

	srv := httptest.NewServer(New(Deps{
		API:            handler.New(reg, sessions, l, nil, nil, handler.Config{}),
		Analytics:      analytics.NewHandler(agg),
		Health:         checker,
		Metrics:        m,
		FixturesDir:    dir,
		RequestTimeout: 5 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return &playground{server: srv, aggregator: agg}
}

func (p *playground) do(t *testing.T, method, path, session string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, p.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

type searchResponse struct {
	Session string `json:"session"`
	Target  string `json:"target"`
	Loading bool   `json:"loading"`
	Applied *bool  `json:"applied"`
	Count   int    `json:"count"`
	Results []struct {
		ID       string         `json:"id"`
		Document map[string]any `json:"document"`
	} `json:"results"`
}

type syncResponse struct {
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Results   []struct {
		Collection string `json:"collection"`
		Stage      string `json:"stage"`
		Error      string `json:"error"`
	} `json:"results"`
}

func TestSyncThenSearch(t *testing.T) {
	p := newPlayground(t)

	if resp := p.do(t, http.MethodGet, "/api/v1/sync/report", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("report before sync = %d", resp.StatusCode)
	}

	var report syncResponse
	if resp := p.do(t, http.MethodPost, "/api/v1/sync", "", &report); resp.StatusCode != http.StatusOK {
		t.Fatalf("sync = %d", resp.StatusCode)
	}
	if report.Status != loader.StatusPartial || report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if tasks := report.Results[2]; tasks.Stage != "fetch" || tasks.Error != "failed to load tasks.json: status 404" {
		t.Errorf("tasks result = %+v", tasks)
	}

	var got searchResponse
	p.do(t, http.MethodGet, "/api/v1/search?collection=users&q=Alice", "tab-1", &got)
	if got.Session != "tab-1" || got.Loading || got.Applied == nil || !*got.Applied {
		t.Errorf("search state = %+v", got)
	}
	if got.Count != 1 || got.Results[0].ID != "1" || got.Results[0].Document["email"] != "alice@example.com" {
		t.Errorf("results = %+v", got.Results)
	}

	// empty query is the placeholder search
	p.do(t, http.MethodGet, "/api/v1/search?collection=users&q=", "tab-1", &got)
	if got.Count != 2 {
		t.Errorf("placeholder count = %d", got.Count)
	}

	// a collection that failed to load degrades to no results
	p.do(t, http.MethodGet, "/api/v1/search?collection=tasks&q=anything", "tab-1", &got)
	if got.Count != 0 || got.Results == nil || got.Target != "tasks" {
		t.Errorf("tasks search = %+v", got)
	}

	// the session remembers its last query; other sessions are untouched
	var session searchResponse
	p.do(t, http.MethodGet, "/api/v1/session", "tab-1", &session)
	if session.Target != "tasks" {
		t.Errorf("tab-1 target = %q", session.Target)
	}
	p.do(t, http.MethodGet, "/api/v1/session", "tab-2", &session)
	if session.Target != "users" || session.Count != 0 {
		t.Errorf("fresh session = %+v", session)
	}
}

func TestSearchRejectsBadLimit(t *testing.T) {
	p := newPlayground(t)
	if resp := p.do(t, http.MethodGet, "/api/v1/search?collection=users&limit=zero", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("code = %d", resp.StatusCode)
	}
}

func TestFixturesAndHealth(t *testing.T) {
	p := newPlayground(t)

	var users []map[string]any
	if resp := p.do(t, http.MethodGet, "/data/users.json", "", &users); resp.StatusCode != http.StatusOK || len(users) != 2 {
		t.Errorf("fixture = %d %v", resp.StatusCode, users)
	}
	if resp := p.do(t, http.MethodGet, "/data/tasks.json", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing fixture = %d", resp.StatusCode)
	}
	if resp := p.do(t, http.MethodGet, "/health/ready", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	var collections struct {
		Default     string               `json:"default"`
		Collections []dataset.Descriptor `json:"collections"`
	}
	p.do(t, http.MethodGet, "/api/v1/collections", "", &collections)
	if collections.Default != "users" || len(collections.Collections) != 3 {
		t.Errorf("collections = %+v", collections)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	p := newPlayground(t)
	req, _ := http.NewRequest(http.MethodOptions, p.server.URL+"/api/v1/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("preflight = %d %v", resp.StatusCode, resp.Header)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}
