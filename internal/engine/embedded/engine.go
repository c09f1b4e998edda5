// Package embedded is an in-process implementation of engine.Engine. Each
// collection owns an inverted index over the flattened leaf values of its
// documents; documents are upserted by primary key and remembered in the
// order they were first added.
package embedded

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/index"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
)

const defaultLimit = 20

type Engine struct {
	mu          sync.RWMutex
	collections map[string]*collection
	logger      *slog.Logger
}

type collection struct {
	mu         sync.RWMutex
	primaryKey string
	docs       map[string]dataset.Document
	seq        map[string]int64
	order      []string
	index      *index.MemoryIndex
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		collections: make(map[string]*collection),
		logger:      slog.Default().With("component", "embedded-engine"),
	}
}

func newCollection(primaryKey string) *collection {
	if primaryKey == "" {
		primaryKey = dataset.DefaultPrimaryKey
	}
	return &collection{
		primaryKey: primaryKey,
		docs:       make(map[string]dataset.Document),
		seq:        make(map[string]int64),
		index:      index.NewMemoryIndex(),
	}
}

func (e *Engine) CreateCollection(ctx context.Context, name string, primaryKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return apperrors.NewEngineError(apperrors.OpCreate, name,
			apperrors.New(apperrors.ErrInvalidInput, 400, "collection name is required"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.collections[name]; exists {
		return fmt.Errorf("collection %q: %w", name, apperrors.ErrCollectionExists)
	}
	e.collections[name] = newCollection(primaryKey)
	e.logger.Info("collection created", "collection", name, "primary_key", primaryKey)
	return nil
}

// AddDocuments upserts docs into the collection, creating it with the
// default primary key when it does not exist yet. The batch is validated
// as a whole before anything is applied.
func (e *Engine) AddDocuments(ctx context.Context, name string, docs []dataset.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	c, exists := e.collections[name]
	if !exists {
		c = newCollection(dataset.DefaultPrimaryKey)
		e.collections[name] = c
		e.logger.Info("collection created implicitly", "collection", name)
	}
	e.mu.Unlock()

	if err := dataset.Validate(docs, c.primaryKey); err != nil {
		return apperrors.NewEngineError(apperrors.OpAdd, name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		id, _ := doc.Key(c.primaryKey)
		if _, seen := c.seq[id]; !seen {
			c.seq[id] = int64(len(c.order))
			c.order = append(c.order, id)
		}
		c.docs[id] = doc
		c.index.AddDocument(id, tokenizer.Tokenize(flatten(doc)))
	}
	e.logger.Debug("documents added",
		"collection", name,
		"batch", len(docs),
		"total", len(c.docs),
		"terms", c.index.Terms(),
	)
	return nil
}

func (e *Engine) Search(ctx context.Context, name string, req engine.SearchRequest) (*engine.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.mu.RLock()
	c, exists := e.collections[name]
	e.mu.RUnlock()
	if !exists {
		return nil, apperrors.NewEngineError(apperrors.OpSearch, name,
			fmt.Errorf("index %q: %w", name, apperrors.ErrCollectionNotFound))
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, total := c.execute(req)
	hits := make([]dataset.Document, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, clone(c.docs[id]))
	}
	return &engine.SearchResponse{
		Hits:               hits,
		Query:              req.Query,
		EstimatedTotalHits: total,
		Limit:              req.Limit,
		Offset:             req.Offset,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	return ctx.Err()
}

// flatten renders every scalar leaf of doc as text. Map keys are visited in
// sorted order so token positions are deterministic.
func flatten(doc dataset.Document) string {
	var sb strings.Builder
	appendValue(&sb, map[string]any(doc))
	return sb.String()
}

func appendValue(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		sb.WriteString(val)
		sb.WriteByte(' ')
	case float64:
		sb.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
		sb.WriteByte(' ')
	case int:
		sb.WriteString(strconv.Itoa(val))
		sb.WriteByte(' ')
	case int64:
		sb.WriteString(strconv.FormatInt(val, 10))
		sb.WriteByte(' ')
	case bool:
		sb.WriteString(strconv.FormatBool(val))
		sb.WriteByte(' ')
	case fmt.Stringer:
		sb.WriteString(val.String())
		sb.WriteByte(' ')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendValue(sb, val[k])
		}
	case dataset.Document:
		appendValue(sb, map[string]any(val))
	case []any:
		for _, item := range val {
			appendValue(sb, item)
		}
	}
}

// clone copies a document deeply enough that callers cannot reach the
// engine's nested maps and slices.
func clone(doc dataset.Document) dataset.Document {
	return dataset.Document(cloneValue(map[string]any(doc)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
