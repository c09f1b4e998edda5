// Package meili implements engine.Engine on the official Meilisearch Go
// client. Index creation and document writes are asynchronous on the
// server; the driver waits for their tasks so callers see a finished write.
package meili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/resilience"
)

const defaultPollInterval = 50 * time.Millisecond

// Meilisearch error codes the driver maps onto application sentinels.
const (
	CodeIndexAlreadyExists = "index_already_exists"
	CodeIndexNotFound      = "index_not_found"
)

type Engine struct {
	client       meilisearch.ServiceManager
	primaryKey   string
	waitForTasks bool
	pollInterval time.Duration
	breaker      *resilience.CircuitBreaker
	logger       *slog.Logger
}

var _ engine.Engine = (*Engine)(nil)

func New(cfg config.EngineConfig, m *metrics.Metrics) *Engine {
	poll := cfg.TaskPollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	primaryKey := cfg.PrimaryKey
	if primaryKey == "" {
		primaryKey = dataset.DefaultPrimaryKey
	}
	opts := []meilisearch.Option{
		meilisearch.WithCustomClient(&http.Client{Timeout: cfg.Timeout}),
		// The breaker decides when to stop calling a failing server.
		meilisearch.DisableRetries(),
	}
	if cfg.APIKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(cfg.APIKey))
	}
	return &Engine{
		client:       meilisearch.New(strings.TrimRight(cfg.URL, "/"), opts...),
		primaryKey:   primaryKey,
		waitForTasks: cfg.WaitForTasks,
		pollInterval: poll,
		breaker: resilience.NewCircuitBreaker("meilisearch", resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, to resilience.State) {
				m.SetBreakerState(name, int(to))
			},
		}),
		logger: slog.Default().With("component", "meili-engine", "url", cfg.URL),
	}
}

func (e *Engine) CreateCollection(ctx context.Context, name string, primaryKey string) error {
	var taskUID int64
	err := e.call(func() error {
		info, err := e.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{Uid: name, PrimaryKey: primaryKey})
		if err != nil {
			return err
		}
		taskUID = info.TaskUID
		return e.waitForTask(ctx, taskUID)
	})
	if err != nil {
		return apperrors.NewEngineError(apperrors.OpCreate, name, err)
	}
	e.logger.Info("index created", "index", name, "primary_key", primaryKey, "task_uid", taskUID)
	return nil
}

func (e *Engine) AddDocuments(ctx context.Context, name string, docs []dataset.Document) error {
	if docs == nil {
		docs = []dataset.Document{}
	}
	var taskUID int64
	err := e.call(func() error {
		info, err := e.client.Index(name).AddDocumentsWithContext(ctx, docs, e.primaryKey)
		if err != nil {
			return err
		}
		taskUID = info.TaskUID
		if !e.waitForTasks {
			return nil
		}
		return e.waitForTask(ctx, taskUID)
	})
	if err != nil {
		return apperrors.NewEngineError(apperrors.OpAdd, name, err)
	}
	e.logger.Debug("documents added", "index", name, "count", len(docs), "task_uid", taskUID)
	return nil
}

func (e *Engine) Search(ctx context.Context, name string, req engine.SearchRequest) (*engine.SearchResponse, error) {
	var resp *meilisearch.SearchResponse
	err := e.call(func() error {
		var err error
		resp, err = e.client.Index(name).SearchWithContext(ctx, req.Query, &meilisearch.SearchRequest{
			Limit:  int64(req.Limit),
			Offset: int64(req.Offset),
		})
		return err
	})
	if err != nil {
		return nil, apperrors.NewEngineError(apperrors.OpSearch, name, err)
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, apperrors.NewEngineError(apperrors.OpSearch, name, err)
	}
	return &engine.SearchResponse{
		Hits:               hits,
		Query:              resp.Query,
		EstimatedTotalHits: int(resp.EstimatedTotalHits),
		Limit:              int(resp.Limit),
		Offset:             int(resp.Offset),
		ProcessingTimeMs:   resp.ProcessingTimeMs,
	}, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	var status string
	err := e.call(func() error {
		h, err := e.client.HealthWithContext(ctx)
		if err != nil {
			return err
		}
		status = h.Status
		return nil
	})
	if err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}
	if status != "available" {
		return fmt.Errorf("meilisearch status %q", status)
	}
	return nil
}

// BreakerState exposes the circuit breaker for readiness reporting.
func (e *Engine) BreakerState() resilience.State {
	return e.breaker.GetState()
}

// call runs fn through the breaker. Only failures that say something about
// the server's health count against it.
func (e *Engine) call(fn func() error) error {
	return e.breaker.Execute(func() error {
		return mapError(fn())
	}, func(err error) bool { return !transient(err) })
}

// waitForTask blocks until the task leaves the queue. A failed task is
// returned as a *TaskError.
func (e *Engine) waitForTask(ctx context.Context, uid int64) error {
	t, err := e.client.WaitForTaskWithContext(ctx, uid, e.pollInterval)
	if err != nil {
		return fmt.Errorf("waiting for task %d: %w", uid, err)
	}
	switch t.Status {
	case meilisearch.TaskStatusSucceeded:
		return nil
	case meilisearch.TaskStatusFailed:
		return &TaskError{TaskUID: uid, Code: t.Error.Code, Message: t.Error.Message}
	default:
		return fmt.Errorf("task %d %s", uid, t.Status)
	}
}

// TaskError is the error reported on a failed asynchronous task.
type TaskError struct {
	TaskUID int64
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("meilisearch task %d %s: %s", e.TaskUID, e.Code, e.Message)
}

func (e *TaskError) Unwrap() error { return sentinel(e.Code) }

func sentinel(code string) error {
	switch code {
	case CodeIndexAlreadyExists:
		return apperrors.ErrCollectionExists
	case CodeIndexNotFound:
		return apperrors.ErrCollectionNotFound
	default:
		return nil
	}
}

// mapError attaches the matching sentinel to API errors returned by the
// client, keeping the *meilisearch.Error reachable through errors.As.
func mapError(err error) error {
	var apiErr *meilisearch.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if s := sentinel(apiErr.MeilisearchApiError.Code); s != nil {
		return fmt.Errorf("%w: %w", s, err)
	}
	if apiErr.MeilisearchApiError.Type == "invalid_request" {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	return err
}

// transient reports whether err says something about the server's health
// rather than about the request.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return false
	}
	var apiErr *meilisearch.Error
	if errors.As(err, &apiErr) {
		switch apiErr.ErrCode {
		case meilisearch.MeilisearchCommunicationError, meilisearch.MeilisearchTimeoutError:
			return true
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// decodeHits converts the client's untyped hits into documents.
func decodeHits(raw any) ([]dataset.Document, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding hits: %w", err)
	}
	hits := []dataset.Document{}
	if string(data) == "null" {
		return hits, nil
	}
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("decoding hits: %w", err)
	}
	return hits, nil
}
