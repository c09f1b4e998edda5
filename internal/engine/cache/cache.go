// Package cache decorates an engine.Engine with a read-through query cache.
// Search responses are stored per collection so a write to one collection
// only invalidates that collection's entries. Cache failures never fail a
// query; the request falls through to the wrapped engine. A response
// computed before an invalidation is never written back afterwards.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Store is the key/value backend. *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Engine struct {
	next    engine.Engine
	store   Store
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	// gens counts invalidations per collection. Writes to the store hold
	// the read lock; Invalidate bumps under the write lock before flushing.
	genMu sync.RWMutex
	gens  map[string]uint64
}

var _ engine.Engine = (*Engine)(nil)

// New wraps next. Shared engine calls run detached from the caller that
// started them and are bounded by timeout when it is positive.
func New(next engine.Engine, store Store, ttl, timeout time.Duration, m *metrics.Metrics) *Engine {
	return &Engine{
		next:    next,
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		gens:    make(map[string]uint64),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *Engine) CreateCollection(ctx context.Context, name string, primaryKey string) error {
	return c.next.CreateCollection(ctx, name, primaryKey)
}

// AddDocuments writes through to the engine and then drops every cached
// response for the collection.
func (c *Engine) AddDocuments(ctx context.Context, name string, docs []dataset.Document) error {
	if err := c.next.AddDocuments(ctx, name, docs); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, name); err != nil {
		c.logger.Warn("cache invalidation failed", "collection", name, "error", err)
	}
	return nil
}

func (c *Engine) Search(ctx context.Context, name string, req engine.SearchRequest) (*engine.SearchResponse, error) {
	key := buildKey(name, req)
	if resp, ok := c.get(ctx, key); ok {
		return resp, nil
	}
	gen := c.generation(name)
	// Callers that arrive after an invalidation never join an older flight.
	flight := fmt.Sprintf("%s#%d", key, gen)
	ch := c.group.DoChan(flight, func() (interface{}, error) {
		callCtx, cancel := c.detach(ctx)
		defer cancel()
		if data, found, err := c.store.Get(callCtx, key); err == nil && found {
			return data, nil
		}
		resp, err := c.next.Search(callCtx, name, req)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("encoding search response: %w", err)
		}
		c.setIfCurrent(callCtx, name, gen, key, data)
		return data, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for search: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debug("search shared with concurrent miss", "collection", name, "key", key)
	}
	// Each caller decodes its own copy so shared results are never aliased.
	var resp engine.SearchResponse
	if err := json.Unmarshal(res.Val.([]byte), &resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &resp, nil
}

func (c *Engine) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Invalidate removes the cached responses for one collection. Searches in
// flight when it runs will not store their results.
func (c *Engine) Invalidate(ctx context.Context, collection string) error {
	c.genMu.Lock()
	c.gens[collection]++
	c.genMu.Unlock()

	pattern := keyPrefix + collection + ":*"
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache for %s: %w", collection, err)
	}
	c.logger.Info("cache invalidated", "collection", collection, "keys_deleted", deleted)
	return nil
}

func (c *Engine) generation(collection string) uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.gens[collection]
}

// setIfCurrent stores data unless the collection was invalidated after gen
// was read.
func (c *Engine) setIfCurrent(ctx context.Context, collection string, gen uint64, key string, data []byte) {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.gens[collection] != gen {
		c.logger.Debug("discarding response from before invalidation", "collection", collection, "key", key)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.metrics.ObserveCache(false, err)
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Engine) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		return context.WithTimeout(detached, c.timeout)
	}
	return context.WithCancel(detached)
}

func (c *Engine) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Engine) get(ctx context.Context, key string) (*engine.SearchResponse, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.misses.Add(1)
		c.metrics.ObserveCache(false, err)
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		c.metrics.ObserveCache(false, nil)
		return nil, false
	}
	var resp engine.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.misses.Add(1)
		c.metrics.ObserveCache(false, err)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCache(true, nil)
	c.logger.Debug("cache hit", "key", key)
	return &resp, true
}

func buildKey(collection string, req engine.SearchRequest) string {
	raw := fmt.Sprintf("%s|limit=%d|offset=%d", normalizeQuery(req.Query), req.Limit, req.Offset)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, collection, hash[:16])
}

// normalizeQuery folds case and collapses whitespace. A trailing space is
// kept because it decides whether the last word is matched as a prefix.
func normalizeQuery(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if normalized != "" && unicode.IsSpace(rune(query[len(query)-1])) {
		normalized += " "
	}
	return normalized
}
