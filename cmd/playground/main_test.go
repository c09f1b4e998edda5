package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/meili"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/health"
)

func TestBreakerCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	e := meili.New(config.EngineConfig{URL: srv.URL, Timeout: time.Second}, nil)
	check := breakerCheck(e)
	ctx := context.Background()

	if got := check(ctx); got.Status != health.StatusUp {
		t.Fatalf("closed breaker = %+v", got)
	}
	for i := 0; i < 5; i++ {
		_ = e.Ping(ctx)
	}
	if got := check(ctx); got.Status != health.StatusDegraded || got.Message != "circuit open" {
		t.Errorf("open breaker = %+v", got)
	}
}

func TestBuildEngine(t *testing.T) {
	if _, err := buildEngine(config.EngineConfig{Driver: "elastic"}, nil); err == nil {
		t.Error("expected an error for an unknown driver")
	}
	eng, err := buildEngine(config.EngineConfig{Driver: config.DriverMeili, URL: "http://localhost:7700"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := eng.(*meili.Engine); !ok {
		t.Errorf("meili driver built %T", eng)
	}
}
