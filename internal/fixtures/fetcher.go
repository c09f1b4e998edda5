// Package fixtures retrieves dataset files over HTTP. Files are served as
// static JSON arrays under {baseURL}/data/.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
)

const maxFixtureBytes = 32 << 20

type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
	logger     *slog.Logger
}

func NewFetcher(baseURL string, timeout time.Duration, retry resilience.RetryConfig) *Fetcher {
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     slog.Default().With("component", "fixture-fetcher"),
	}
}

// BaseURL reports where fixtures are fetched from.
func (f *Fetcher) BaseURL() string { return f.baseURL }

// Fetch downloads and decodes one fixture file. Non-2xx responses fail with
// a *apperrors.FetchError carrying the file name and status; server errors
// and transport failures are retried, client errors and malformed bodies
// are not.
func (f *Fetcher) Fetch(ctx context.Context, file string) ([]dataset.Document, error) {
	target := f.baseURL + "/data/" + url.PathEscape(file)
	var docs []dataset.Document
	err := resilience.Retry(ctx, "fetch "+file, f.retry, func() error {
		var err error
		docs, err = f.fetchOnce(ctx, target, file)
		return err
	})
	if err != nil {
		var fetchErr *apperrors.FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &apperrors.FetchError{File: file, Err: err}
	}
	f.logger.Debug("fixture fetched", "file", file, "documents", len(docs))
	return docs, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target, file string) ([]dataset.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, resilience.Permanent(&apperrors.FetchError{File: file, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resilience.Permanent(&apperrors.FetchError{File: file, Err: ctx.Err()})
		}
		return nil, &apperrors.FetchError{File: file, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		fetchErr := &apperrors.FetchError{File: file, StatusCode: resp.StatusCode}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fetchErr
		}
		return nil, resilience.Permanent(fetchErr)
	}

	var docs []dataset.Document
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxFixtureBytes))
	if err := dec.Decode(&docs); err != nil {
		return nil, resilience.Permanent(&apperrors.FetchError{
			File: file,
			Err:  fmt.Errorf("decoding %s: %w", file, err),
		})
	}
	if docs == nil {
		docs = []dataset.Document{}
	}
	return docs, nil
}
