// Package errors defines the sentinel errors shared by the search core and
// an AppError type that attaches context to a sentinel without hiding it
// from errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID      = errors.New("document id already exists")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSchemaExists     = errors.New("index schema already exists")
	ErrIndexNotFound    = errors.New("index not found")
	ErrUnknownAnalyzer  = errors.New("unknown analyzer")
	ErrInvalidPattern   = errors.New("invalid wildcard pattern")
	ErrUnmappedField    = errors.New("field has no mapping")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNodeClosed       = errors.New("node is closed")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Code returns a stable machine-readable code for err. It is used for
// rejected ingest results and as a metric label.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrSchemaExists):
		return "schema_exists"
	case errors.Is(err, ErrIndexNotFound):
		return "index_not_found"
	case errors.Is(err, ErrUnknownAnalyzer):
		return "unknown_analyzer"
	case errors.Is(err, ErrInvalidPattern):
		return "invalid_pattern"
	case errors.Is(err, ErrUnmappedField):
		return "unmapped_field"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNodeClosed):
		return "node_closed"
	default:
		return "internal"
	}
}

// IsFatal reports whether err aborts a whole operation rather than a single
// document of a batch.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDuplicateID),
		errors.Is(err, ErrUnmappedField),
		errors.Is(err, ErrInvalidInput):
		return false
	default:
		return true
	}
}
