package meili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

type fakeTask struct {
	UID      int64     `json:"uid"`
	IndexUID string    `json:"indexUid"`
	Status   string    `json:"status"`
	Type     string    `json:"type"`
	Error    *apiError `json:"error,omitempty"`
}

// fakeMeili mimics the slice of the Meilisearch API the driver uses. Tasks
// report "processing" once before they settle.
type fakeMeili struct {
	mu          sync.Mutex
	indexes     map[string][]dataset.Document
	tasks       map[int64]*fakeTask
	polls       map[int64]int
	nextUID     int64
	auth        []string
	primaryKeys []string
	fail        int
}

func newFakeMeili() *fakeMeili {
	return &fakeMeili{
		indexes: make(map[string][]dataset.Document),
		tasks:   make(map[int64]*fakeTask),
		polls:   make(map[int64]int),
	}
}

func (f *fakeMeili) enqueue(w http.ResponseWriter, index, kind string, apiErr *apiError) {
	uid := f.nextUID
	f.nextUID++
	status := "succeeded"
	if apiErr != nil {
		status = "failed"
	}
	f.tasks[uid] = &fakeTask{UID: uid, IndexUID: index, Type: kind, Status: status, Error: apiErr}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"taskUid": uid, "indexUid": index, "status": "enqueued", "type": kind,
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Message: msg, Code: code, Type: "invalid_request"})
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if f.fail > 0 {
		f.fail--
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/health":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "available"})
	case r.URL.Path == "/indexes" && r.Method == http.MethodPost:
		var req struct {
			UID        string `json:"uid"`
			PrimaryKey string `json:"primaryKey"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, exists := f.indexes[req.UID]; exists {
			f.enqueue(w, req.UID, "indexCreation", &apiError{
				Code: CodeIndexAlreadyExists, Type: "invalid_request",
				Message: fmt.Sprintf("Index `%s` already exists.", req.UID),
			})
			return
		}
		f.indexes[req.UID] = []dataset.Document{}
		f.enqueue(w, req.UID, "indexCreation", nil)
	case len(parts) == 2 && parts[0] == "tasks":
		var uid int64
		_, _ = fmt.Sscan(parts[1], &uid)
		t, ok := f.tasks[uid]
		if !ok {
			writeError(w, http.StatusNotFound, "task_not_found", "task not found")
			return
		}
		f.polls[uid]++
		out := *t
		if f.polls[uid] == 1 {
			out.Status = "processing"
			out.Error = nil
		}
		_ = json.NewEncoder(w).Encode(out)
	case len(parts) == 3 && parts[2] == "documents":
		f.primaryKeys = append(f.primaryKeys, r.URL.Query().Get("primaryKey"))
		var docs []dataset.Document
		_ = json.NewDecoder(r.Body).Decode(&docs)
		f.indexes[parts[1]] = append(f.indexes[parts[1]], docs...)
		f.enqueue(w, parts[1], "documentAdditionOrUpdate", nil)
	case len(parts) == 3 && parts[2] == "search":
		docs, ok := f.indexes[parts[1]]
		if !ok {
			writeError(w, http.StatusNotFound, CodeIndexNotFound, fmt.Sprintf("Index `%s` not found.", parts[1]))
			return
		}
		var req struct {
			Q      string `json:"q"`
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		hits := make([]dataset.Document, 0)
		for _, d := range docs {
			raw, _ := json.Marshal(d)
			if strings.Contains(strings.ToLower(string(raw)), strings.ToLower(req.Q)) {
				hits = append(hits, d)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": hits, "query": req.Q, "limit": req.Limit, "offset": req.Offset,
			"estimatedTotalHits": len(hits), "processingTimeMs": 1,
		})
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route")
	}
}

func newTestEngine(t *testing.T, f *fakeMeili) *Engine {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(config.EngineConfig{
		URL:              srv.URL + "/",
		APIKey:           "masterKey",
		PrimaryKey:       "id",
		Timeout:          2 * time.Second,
		WaitForTasks:     true,
		TaskPollInterval: time.Millisecond,
	}, nil)
}

func TestCreateCollectionIsIdempotent(t *testing.T) {
	f := newFakeMeili()
	e := newTestEngine(t, f)
	ctx := context.Background()

	if err := e.CreateCollection(ctx, "users", "id"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := e.CreateCollection(ctx, "users", "id")
	if !errors.Is(err, apperrors.ErrCollectionExists) {
		t.Fatalf("second create = %v, want ErrCollectionExists", err)
	}
	var engErr *apperrors.EngineError
	if !errors.As(err, &engErr) || engErr.Op != apperrors.OpCreate {
		t.Errorf("error not an EngineError{create}: %v", err)
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.Code != CodeIndexAlreadyExists {
		t.Errorf("task error = %+v", taskErr)
	}
	if f.polls[0] < 2 {
		t.Errorf("task polled %d times, want at least 2", f.polls[0])
	}
	if e.BreakerState() != resilience.StateClosed {
		t.Errorf("existing index tripped the breaker")
	}
}

func TestAddAndSearch(t *testing.T) {
	f := newFakeMeili()
	e := newTestEngine(t, f)
	ctx := context.Background()

	docs := []dataset.Document{{"id": float64(1), "name": "Alice"}, {"id": float64(2), "name": "Bob"}}
	if err := e.AddDocuments(ctx, "users", docs); err != nil {
		t.Fatalf("add: %v", err)
	}
	resp, err := e.Search(ctx, "users", engine.SearchRequest{Query: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID() != "1" || resp.Hits[0]["name"] != "Alice" {
		t.Errorf("hits = %v", resp.Hits)
	}
	if resp.EstimatedTotalHits != 1 || resp.Limit != 10 || resp.Query != "alice" {
		t.Errorf("metadata = %+v", resp)
	}
	if len(f.primaryKeys) != 1 || f.primaryKeys[0] != "id" {
		t.Errorf("primary keys sent = %v", f.primaryKeys)
	}
	for _, h := range f.auth {
		if h != "Bearer masterKey" {
			t.Fatalf("authorization header = %q", h)
		}
	}
}

func TestSearchMissingIndex(t *testing.T) {
	e := newTestEngine(t, newFakeMeili())
	_, err := e.Search(context.Background(), "tasks", engine.SearchRequest{Query: "x"})
	if !errors.Is(err, apperrors.ErrCollectionNotFound) || !errors.Is(err, apperrors.ErrEngine) {
		t.Fatalf("err = %v", err)
	}
	var apiErr *meilisearch.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.MeilisearchApiError.Code != CodeIndexNotFound {
		t.Errorf("api error = %+v", apiErr)
	}
	if e.BreakerState() != resilience.StateClosed {
		t.Errorf("client errors tripped the breaker")
	}
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	f := newFakeMeili()
	f.fail = 100
	e := newTestEngine(t, f)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := e.Ping(ctx)
		var apiErr *meilisearch.Error
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("ping %d = %v", i, err)
		}
	}
	if err := e.Ping(ctx); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("ping after failures = %v, want ErrCircuitOpen", err)
	}
	if e.BreakerState() != resilience.StateOpen {
		t.Errorf("breaker state = %v", e.BreakerState())
	}
	if len(f.auth) != 5 {
		t.Errorf("requests = %d, want 5 (no client retries, none while open)", len(f.auth))
	}
}

func TestPing(t *testing.T) {
	e := newTestEngine(t, newFakeMeili())
	if err := e.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
