package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/middleware"
)

type apiClient struct {
	baseURL string
	session string
	http    *http.Client
}

func newAPIClient(baseURL, session string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    &http.Client{Timeout: timeout},
	}
}

type collectionsResponse struct {
	Default     dataset.CollectionID `json:"default"`
	Collections []dataset.Descriptor `json:"collections"`
}

type searchHit struct {
	ID       string           `json:"id"`
	Document dataset.Document `json:"document"`
}

type searchResponse struct {
	Session string               `json:"session"`
	Text    string               `json:"text"`
	Target  dataset.CollectionID `json:"target"`
	Count   int                  `json:"count"`
	Results []searchHit          `json:"results"`
}

type syncResponse struct {
	loader.Report
	Status     string `json:"status"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"duration_ms"`
}

func (c *apiClient) Collections(ctx context.Context) (*collectionsResponse, error) {
	var out collectionsResponse
	return &out, c.do(ctx, http.MethodGet, "/api/v1/collections", nil, &out)
}

func (c *apiClient) Search(ctx context.Context, collection, text string, limit int) (*searchResponse, error) {
	q := url.Values{"collection": {collection}, "q": {text}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out searchResponse
	return &out, c.do(ctx, http.MethodGet, "/api/v1/search", q, &out)
}

func (c *apiClient) Sync(ctx context.Context, failFast *bool) (*syncResponse, error) {
	q := url.Values{}
	if failFast != nil {
		q.Set("failFast", fmt.Sprint(*failFast))
	}
	var out syncResponse
	return &out, c.do(ctx, http.MethodPost, "/api/v1/sync", q, &out)
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if c.session != "" {
		req.Header.Set(middleware.SessionIDHeader, c.session)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	slog.Debug("api call", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", resp.Header.Get(middleware.RequestIDHeader), "latency", time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
