// Package loader synchronises the configured datasets into the search
// engine. Each dataset is created, fetched and added strictly in order;
// the outcome of every step lands in a Report instead of an early return.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the documents of one fixture file.
type Fetcher interface {
	Fetch(ctx context.Context, file string) ([]dataset.Document, error)
}

// Tracker receives one analytics event per dataset.
type Tracker interface {
	Track(event analytics.Envelope)
}

// HistoryStore persists finished reports.
type HistoryStore interface {
	SaveReport(ctx context.Context, report *Report) error
}

type Options struct {
	PrimaryKey string
	// FailFast stops the run at the first failed dataset; the rest are
	// reported as skipped.
	FailFast bool
	Metrics  *metrics.Metrics
	Tracker  Tracker
	History  HistoryStore
}

type Loader struct {
	engine   engine.Engine
	fetcher  Fetcher
	registry *dataset.Registry
	opts     Options
	group    singleflight.Group
	mu       sync.RWMutex
	last     *Report
}

func New(eng engine.Engine, fetcher Fetcher, registry *dataset.Registry, opts Options) *Loader {
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = dataset.DefaultPrimaryKey
	}
	return &Loader{
		engine:   eng,
		fetcher:  fetcher,
		registry: registry,
		opts:     opts,
	}
}

// SyncAll loads every registered dataset using the configured failure
// policy. Calls made while a run is in flight share that run's report.
func (l *Loader) SyncAll(ctx context.Context) *Report {
	return l.SyncAllWith(ctx, l.opts.FailFast)
}

// SyncAllWith is SyncAll with an explicit failure policy.
func (l *Loader) SyncAllWith(ctx context.Context, failFast bool) *Report {
	key := fmt.Sprintf("sync:failfast=%t", failFast)
	v, _, shared := l.group.Do(key, func() (interface{}, error) {
		return l.run(ctx, failFast), nil
	})
	if shared {
		logger.FromContext(ctx).Debug("joined in-flight sync run")
	}
	return v.(*Report)
}

// LastReport returns the most recently finished report.
func (l *Loader) LastReport() (*Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.last != nil
}

func (l *Loader) run(ctx context.Context, failFast bool) *Report {
	log := logger.FromContext(ctx).With("component", "loader")
	traceCtx, span := tracing.StartSpan(ctx, "sync_all", logger.RequestID(ctx))
	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]Result, 0, len(l.registry.Descriptors())),
		FailFast:  failFast,
	}
	span.SetAttr("run_id", report.ID)
	log.Info("sync started", "run_id", report.ID, "datasets", len(l.registry.Descriptors()), "fail_fast", failFast)

	for _, d := range l.registry.Descriptors() {
		if report.Aborted {
			res := Result{Collection: d.Name, SourceFile: d.SourceFile, Stage: StageSkipped}
			report.Results = append(report.Results, res)
			l.opts.Metrics.ObserveSyncDataset(string(d.Name), string(StageSkipped), 0)
			continue
		}
		res := l.syncOne(traceCtx, log, d)
		report.Results = append(report.Results, res)
		l.record(res)
		if res.Err != nil && (failFast || ctx.Err() != nil) {
			report.Aborted = true
		}
	}

	report.FinishedAt = time.Now().UTC()
	span.SetAttr("status", report.Status())
	if err := report.Err(); err != nil {
		span.Fail(err)
	}
	span.End()
	span.Log(log)

	l.mu.Lock()
	l.last = report
	l.mu.Unlock()

	l.opts.Metrics.ObserveSyncRun(report.Status(), report.Duration())
	if l.opts.History != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := l.opts.History.SaveReport(saveCtx, report); err != nil {
			log.Error("failed to persist sync report", "run_id", report.ID, "error", err)
		}
		cancel()
	}

	level := slog.LevelInfo
	if report.Failed() > 0 {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "sync completed",
		"run_id", report.ID,
		"status", report.Status(),
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"skipped", report.Skipped(),
		"duration_ms", report.Duration().Milliseconds(),
	)
	return report
}

func (l *Loader) syncOne(ctx context.Context, log *slog.Logger, d dataset.Descriptor) (res Result) {
	name := string(d.Name)
	start := time.Now()
	res = Result{Collection: d.Name, SourceFile: d.SourceFile}
	ctx, span := tracing.StartChildSpan(ctx, "sync "+name)
	defer func() {
		res.Duration = time.Since(start)
		res.DurationMs = res.Duration.Milliseconds()
		span.SetAttr("stage", string(res.Stage))
		span.Fail(res.Err)
		span.End()
	}()

	createCtx, createSpan := tracing.StartChildSpan(ctx, "create")
	err := l.engine.CreateCollection(createCtx, name, l.opts.PrimaryKey)
	switch {
	case err == nil:
		res.Created = true
	case errors.Is(err, apperrors.ErrCollectionExists):
		createSpan.SetAttr("existing", true)
	default:
		createSpan.Fail(err)
		createSpan.End()
		res.fail(StageCreate, asEngineError(apperrors.OpCreate, name, err))
		log.Error("create collection failed", "collection", name, "error", err)
		return res
	}
	createSpan.End()

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch")
	fetchSpan.SetAttr("file", d.SourceFile)
	docs, err := l.fetcher.Fetch(fetchCtx, d.SourceFile)
	if err != nil {
		var fetchErr *apperrors.FetchError
		if !errors.As(err, &fetchErr) {
			err = &apperrors.FetchError{File: d.SourceFile, Err: err}
		}
		fetchSpan.Fail(err)
		fetchSpan.End()
		res.fail(StageFetch, err)
		log.Error("fixture fetch failed", "collection", name, "file", d.SourceFile, "error", err)
		return res
	}
	fetchSpan.SetAttr("documents", len(docs))
	fetchSpan.End()

	addCtx, addSpan := tracing.StartChildSpan(ctx, "add")
	if err := l.engine.AddDocuments(addCtx, name, docs); err != nil {
		addSpan.Fail(err)
		addSpan.End()
		res.fail(StageAdd, asEngineError(apperrors.OpAdd, name, err))
		log.Error("add documents failed", "collection", name, "documents", len(docs), "error", err)
		return res
	}
	addSpan.End()

	res.Stage = StageDone
	res.Documents = len(docs)
	log.Info("synced", "collection", name, "documents", len(docs), "created", res.Created)
	return res
}

func (l *Loader) record(res Result) {
	l.opts.Metrics.ObserveSyncDataset(string(res.Collection), string(res.Stage), res.Documents)
	if l.opts.Tracker == nil {
		return
	}
	l.opts.Tracker.Track(analytics.Sync(analytics.SyncEvent{
		Collection: string(res.Collection),
		Stage:      string(res.Stage),
		Documents:  res.Documents,
		Created:    res.Created,
		Failed:     res.Err != nil,
		Error:      res.Error,
		LatencyMs:  res.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}))
}

func asEngineError(op, collection string, err error) error {
	var engErr *apperrors.EngineError
	if errors.As(err, &engErr) {
		return err
	}
	return apperrors.NewEngineError(op, collection, err)
}
