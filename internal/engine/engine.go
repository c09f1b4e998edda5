// Package engine defines the contract the playground needs from a full-text
// search engine. Drivers live in sub-packages: meili talks to a
// Meilisearch-compatible server over HTTP, embedded runs an in-process
// index, and cache decorates either with a Redis query cache.
package engine

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
)

// SearchRequest is a single free-text query against one collection. An
// empty Query is legal and returns the engine's default result set.
type SearchRequest struct {
	Query  string `json:"q"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SearchResponse carries hits in engine order plus engine metadata.
type SearchResponse struct {
	Hits               []dataset.Document `json:"hits"`
	Query              string             `json:"query"`
	EstimatedTotalHits int                `json:"estimatedTotalHits"`
	Limit              int                `json:"limit"`
	Offset             int                `json:"offset"`
	ProcessingTimeMs   int64              `json:"processingTimeMs"`
}

// Engine is implemented by every search backend.
//
// CreateCollection returns an error matching apperrors.ErrCollectionExists
// when the collection is already present. AddDocuments upserts by primary
// key. Search against a missing collection returns an error matching
// apperrors.ErrCollectionNotFound.
type Engine interface {
	CreateCollection(ctx context.Context, name string, primaryKey string) error
	AddDocuments(ctx context.Context, name string, docs []dataset.Document) error
	Search(ctx context.Context, name string, req SearchRequest) (*SearchResponse, error)
	Ping(ctx context.Context) error
}
