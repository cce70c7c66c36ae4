// Package validator checks the shape of bulk ingestion input before it
// reaches the index. Mapping checks happen in the index itself.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

const (
	maxIDLength    = 512
	maxFieldLength = 1048576
	maxBatchSize   = 10000
)

// ValidationError holds per-field validation failure messages.
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
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateDocument checks the id and field values of a document.
func ValidateDocument(doc *ingestion.Document) error {
	errs := make(map[string]string)
	switch {
	case strings.TrimSpace(doc.ID) == "":
		errs["id"] = "id is required"
	case len(doc.ID) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	case !utf8.ValidString(doc.ID):
		errs["id"] = "id must be valid UTF-8"
	}
	for name, value := range doc.Fields {
		switch {
		case strings.TrimSpace(name) == "":
			errs["fields"] = "field names must not be empty"
		case len(value) > maxFieldLength:
			errs[name] = fmt.Sprintf("value must be at most %d bytes", maxFieldLength)
		case !utf8.ValidString(value):
			errs[name] = "value must be valid UTF-8"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateBulkEvent checks a bulk request received from Kafka.
func ValidateBulkEvent(ev *ingestion.BulkEvent) error {
	errs := make(map[string]string)
	if strings.TrimSpace(ev.Index) == "" {
		errs["index"] = "index is required"
	}
	if len(ev.Documents) > maxBatchSize {
		errs["documents"] = fmt.Sprintf("batch must hold at most %d documents", maxBatchSize)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
