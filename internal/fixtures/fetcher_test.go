package fixtures

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
)

var fastRetry = resilience.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/users.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alice"},{"id":2,"name":"Bob"}]`))
	}))
	defer srv.Close()

	docs, err := NewFetcher(srv.URL+"/", time.Second, fastRetry).Fetch(context.Background(), "users.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID() != "1" || docs[1]["name"] != "Bob" {
		t.Errorf("docs = %v", docs)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int64
		wantCode  int
		wantText  string
	}{
		{"not found is permanent", http.StatusNotFound, "", 1, 404, "failed to load posts.json: status 404"},
		{"server error is retried", http.StatusInternalServerError, "", 3, 500, "failed to load posts.json: status 500"},
		{"bad json is permanent", http.StatusOK, `{"not":"an array"}`, 1, 0, "failed to load posts.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewFetcher(srv.URL, time.Second, fastRetry).Fetch(context.Background(), "posts.json")
			if !errors.Is(err, apperrors.ErrFetch) {
				t.Fatalf("err = %v, want ErrFetch", err)
			}
			var fetchErr *apperrors.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("err is not a FetchError: %T", err)
			}
			if fetchErr.File != "posts.json" || fetchErr.StatusCode != tt.wantCode {
				t.Errorf("fetch error = %+v", fetchErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantText) {
				t.Errorf("message = %q, want prefix %q", err.Error(), tt.wantText)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	docs, err := NewFetcher(srv.URL, time.Second, fastRetry).Fetch(context.Background(), "tasks.json")
	if err != nil {
		t.Fatal(err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("docs = %v, want empty non-nil", docs)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(url, time.Second, resilience.RetryConfig{MaxAttempts: 1}).Fetch(context.Background(), "users.json")
	var fetchErr *apperrors.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 0 || fetchErr.Err == nil {
		t.Fatalf("err = %v", err)
	}
}
