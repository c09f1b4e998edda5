package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		cacheErr   error
		wantStatus Status
		wantCode   int
	}{
		{"all up", nil, nil, StatusUp, http.StatusOK},
		{"optional dependency down", nil, errors.New("redis down"), StatusDegraded, http.StatusOK},
		{"critical dependency down", errors.New("engine down"), errors.New("redis down"), StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Register("engine", PingCheck(func(context.Context) error { return tt.engineErr }, true))
			c.Register("redis", PingCheck(func(context.Context) error { return tt.cacheErr }, false))

			rec := httptest.NewRecorder()
			c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Components) != 2 {
				t.Errorf("components = %v", report.Components)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
}
