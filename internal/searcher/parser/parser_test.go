package parser

import (
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		analyze bool
		want    QueryPlan
	}{
		{"*est5*", true, QueryPlan{Field: "f1", Query: Query{Type: QueryWildcard, Value: "*est5*", AnalyzeWildcard: true}}},
		{"f2:*обак*", false, QueryPlan{Field: "f2", Query: Query{Type: QueryWildcard, Value: "*обак*"}}},
		{"f2: собака ", false, QueryPlan{Field: "f2", Query: Query{Type: QueryMatch, Value: "собака"}}},
		{"reading books", false, QueryPlan{Field: "f1", Query: Query{Type: QueryMatch, Value: "reading books"}}},
		{`a\*b`, true, QueryPlan{Field: "f1", Query: Query{Type: QueryMatch, Value: "a*b"}}},
		{"te?t", false, QueryPlan{Field: "f1", Query: Query{Type: QueryWildcard, Value: "te?t"}}},
		{"*:x", false, QueryPlan{Field: "f1", Query: Query{Type: QueryWildcard, Value: "*:x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			plan, err := Parse(tt.raw, "f1", tt.analyze)
			require.NoError(t, err)
			tt.want.RawQuery = tt.raw
			assert.Equal(t, &tt.want, plan)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw          string
		defaultField string
		want         error
	}{
		{"", "f1", apperrors.ErrInvalidInput},
		{"   ", "f1", apperrors.ErrInvalidInput},
		{"f1:", "f1", apperrors.ErrInvalidInput},
		{"value", "", apperrors.ErrInvalidInput},
		{"te* st*", "f1", apperrors.ErrInvalidPattern},
		{`abc*\`, "f1", apperrors.ErrInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.defaultField, false)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, Query{Type: QueryExact, Value: "test5v"}.Validate())
	assert.True(t, errors.Is(Query{Type: QueryExact}.Validate(), apperrors.ErrInvalidInput))
	assert.True(t, errors.Is(Query{Type: "fuzzy", Value: "x"}.Validate(), apperrors.ErrInvalidInput))
	assert.True(t, errors.Is(Query{Type: QueryWildcard}.Validate(), apperrors.ErrInvalidPattern))
}
