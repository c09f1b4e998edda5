// Package dataset defines the collections the playground knows about, the
// fixture descriptors they are loaded from, and the schemaless Document
// handed to the search engine.
package dataset

import (
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
)

// CollectionID names a collection in the search engine.
type CollectionID string

// The collections shipped with the playground fixtures.
const (
	Users CollectionID = "users"
	Posts CollectionID = "posts"
	Tasks CollectionID = "tasks"
)

func (c CollectionID) String() string { return string(c) }

// Descriptor pairs a collection with the fixture file that seeds it.
type Descriptor struct {
	Name       CollectionID `json:"name"`
	SourceFile string       `json:"source_file"`
}

// DefaultDescriptors is the fixed dataset list of a stock deployment.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{Name: Users, SourceFile: "users.json"},
		{Name: Posts, SourceFile: "posts.json"},
		{Name: Tasks, SourceFile: "tasks.json"},
	}
}

// Registry is the closed set of collections a deployment accepts, in load
// order. It is immutable once built.
type Registry struct {
	descriptors []Descriptor
	index       map[CollectionID]int
}

// NewRegistry builds a registry from descriptors, rejecting empty or
// duplicate names.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: slices.Clone(descriptors),
		index:       make(map[CollectionID]int, len(descriptors)),
	}
	for i, d := range descriptors {
		if d.Name == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "descriptor %d has no name", i)
		}
		if d.SourceFile == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "descriptor %q has no source file", d.Name)
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "duplicate collection %q", d.Name)
		}
		r.index[d.Name] = i
	}
	return r, nil
}

// FromConfig builds the registry from the fixtures section.
func FromConfig(cfg config.FixturesConfig) (*Registry, error) {
	descs := make([]Descriptor, 0, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		descs = append(descs, Descriptor{Name: CollectionID(ds.Name), SourceFile: ds.File})
	}
	return NewRegistry(descs)
}

// Parse validates s against the registry.
func (r *Registry) Parse(s string) (CollectionID, error) {
	id := CollectionID(s)
	if !r.Contains(id) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownCollection, s)
	}
	return id, nil
}

func (r *Registry) Contains(id CollectionID) bool {
	_, ok := r.index[id]
	return ok
}

// Descriptors returns the datasets in load order.
func (r *Registry) Descriptors() []Descriptor {
	return slices.Clone(r.descriptors)
}

// IDs returns the collection ids in load order.
func (r *Registry) IDs() []CollectionID {
	ids := make([]CollectionID, len(r.descriptors))
	for i, d := range r.descriptors {
		ids[i] = d.Name
	}
	return ids
}

// Default returns the first registered collection, used as the initial
// query target.
func (r *Registry) Default() CollectionID {
	if len(r.descriptors) == 0 {
		return ""
	}
	return r.descriptors[0].Name
}
