package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
)

// DefaultPrimaryKey is the field every fixture document is keyed by.
const DefaultPrimaryKey = "id"

// Document is an arbitrary JSON object. The engine owns documents once
// they are added; callers must not mutate a Document after handing it over.
type Document map[string]any

// Key returns the primary-key value rendered as a string. Numbers are
// formatted without exponent so 1 and 1.0 both become "1".
func (d Document) Key(primaryKey string) (string, bool) {
	v, ok := d[primaryKey]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		if id != float64(int64(id)) {
			return "", false
		}
		return strconv.FormatInt(int64(id), 10), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return "", false
		}
		return id.String(), true
	default:
		return "", false
	}
}

// ID is Key with the default primary key.
func (d Document) ID() string {
	id, _ := d.Key(DefaultPrimaryKey)
	return id
}

// ValidationError holds per-document validation failures keyed by the
// document's position in the batch.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// Validate checks every document carries a usable primary key. Primary keys
// must be non-empty strings or integers. Repeated keys are allowed; the
// last occurrence wins when the batch is applied.
func Validate(docs []Document, primaryKey string) error {
	errs := make(map[string]string)
	for i, doc := range docs {
		pos := fmt.Sprintf("documents[%d]", i)
		if doc == nil {
			errs[pos] = "document is null"
			continue
		}
		if _, ok := doc.Key(primaryKey); !ok {
			errs[pos] = fmt.Sprintf("missing or invalid primary key %q", primaryKey)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
