package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     ingestion.Document
		wantErr string
	}{
		{"valid", ingestion.Document{ID: "1", Fields: map[string]string{"f1": "test1v"}}, ""},
		{"no fields", ingestion.Document{ID: "1"}, ""},
		{"empty id", ingestion.Document{ID: "  "}, "id: id is required"},
		{"long id", ingestion.Document{ID: strings.Repeat("x", maxIDLength+1)}, "id: id must be at most 512 bytes"},
		{"bad utf8 value", ingestion.Document{ID: "1", Fields: map[string]string{"f1": "\xff"}}, "f1: value must be valid UTF-8"},
		{"empty field name", ingestion.Document{ID: "1", Fields: map[string]string{"": "x"}}, "fields: field names must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(&tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}}
	assert.Equal(t, "a: one; b: two", err.Error())
}

func TestValidateBulkEvent(t *testing.T) {
	assert.NoError(t, ValidateBulkEvent(&ingestion.BulkEvent{Index: "test_nx"}))

	err := ValidateBulkEvent(&ingestion.BulkEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index is required")

	err = ValidateBulkEvent(&ingestion.BulkEvent{Index: "i", Documents: make([]ingestion.Document, maxBatchSize+1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents")
}
