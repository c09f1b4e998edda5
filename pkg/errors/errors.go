package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrFetch              = errors.New("fixture fetch failed")
	ErrEngine             = errors.New("search engine error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// FetchError reports a fixture file that could not be retrieved. StatusCode
// is zero when the request never got a response.
type FetchError struct {
	File       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to load %s: status %d", e.File, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("failed to load %s", e.File)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Engine operations reported in EngineError.Op.
const (
	OpCreate = "create"
	OpAdd    = "add"
	OpSearch = "search"
)

// EngineError wraps a failure returned by the search engine for one
// collection operation.
type EngineError struct {
	Op         string
	Collection string
	Err        error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s on %q: %v", e.Op, e.Collection, e.Err)
}

func (e *EngineError) Unwrap() []error {
	return []error{ErrEngine, e.Err}
}

func NewEngineError(op, collection string, err error) *EngineError {
	return &EngineError{Op: op, Collection: collection, Err: err}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrCollectionNotFound), errors.Is(err, ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, ErrCollectionExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrFetch), errors.Is(err, ErrEngine):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
