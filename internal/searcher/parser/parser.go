// Package parser turns search requests into query plans. It understands the
// structured Query form and a small query-string syntax: "field:value" or a
// bare "value" against a default field, where a value with an unescaped '*'
// or '?' becomes a wildcard query and anything else a match query.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/wildcard"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

type QueryType string

const (
	// QueryExact looks the value up as a single token, without analysis.
	QueryExact QueryType = "exact"
	// QueryWildcard matches the value as a pattern against every token.
	QueryWildcard QueryType = "wildcard"
	// QueryMatch analyzes the value with the field analyzer and returns
	// documents containing any of the resulting tokens.
	QueryMatch QueryType = "match"
)

// Query is a single-field query.
type Query struct {
	Type            QueryType `json:"type"`
	Value           string    `json:"value"`
	AnalyzeWildcard bool      `json:"analyze_wildcard,omitempty"`
}

// Validate checks the query type and value.
func (q Query) Validate() error {
	switch q.Type {
	case QueryExact, QueryMatch:
		if q.Value == "" {
			return apperrors.Newf(apperrors.ErrInvalidInput, "%s query needs a value", q.Type)
		}
	case QueryWildcard:
		if _, err := wildcard.Parse(q.Value); err != nil {
			return err
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "unknown query type %q", q.Type)
	}
	return nil
}

// QueryPlan is a query bound to the field it runs against.
type QueryPlan struct {
	Field    string
	Query    Query
	RawQuery string
}

// Parse parses a query string. analyzeWildcard is copied onto wildcard
// queries.
func Parse(raw, defaultField string, analyzeWildcard bool) (*QueryPlan, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "empty query")
	}
	field, value := splitField(trimmed)
	if field == "" {
		field = defaultField
	}
	if field == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "query %q names no field and no default field is set", raw)
	}
	if value == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "query %q has an empty value", raw)
	}

	plan := &QueryPlan{Field: field, RawQuery: raw}
	if hasUnescapedWildcard(value) {
		plan.Query = Query{Type: QueryWildcard, Value: value, AnalyzeWildcard: analyzeWildcard}
	} else {
		plan.Query = Query{Type: QueryMatch, Value: unescape(value)}
	}
	if err := plan.Query.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// splitField splits "field:value" on the first unescaped colon. The prefix
// only counts as a field name when it holds no wildcard, escape or space.
func splitField(s string) (field, value string) {
	for i, r := range s {
		switch {
		case r == '\\' || r == '*' || r == '?' || unicode.IsSpace(r):
			return "", s
		case r == ':':
			return s[:i], strings.TrimSpace(s[i+1:])
		}
	}
	return "", s
}

func hasUnescapedWildcard(s string) bool {
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*' || r == '?':
			return true
		}
	}
	return false
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
