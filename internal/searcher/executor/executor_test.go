package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var words = []string{"У", "ПОПА", "БЫЛА", "СОБАКА", "организация"}

func newCorpus(t *testing.T) *indexer.Engine {
	t.Helper()
	e := indexer.NewEngine(nil)
	require.NoError(t, e.CreateIndex("test_nx", []schema.FieldMapping{
		{Name: "f1", Type: schema.TypeText},
		{Name: "f2", Type: schema.TypeText, Analyzer: analysis.Russian},
		{Name: "tag", Type: schema.TypeKeyword},
		{Name: "body", Type: schema.TypeText, Analyzer: analysis.English},
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.IndexDocument("test_nx", fmt.Sprint(i), map[string]string{
			"f1": fmt.Sprintf("test%dv", i),
			"f2": words[i%5],
		}))
	}
	require.NoError(t, e.IndexDocument("test_nx", "k", map[string]string{
		"tag":  "New York",
		"body": "Reading the books",
	}))
	return e
}

func TestSearchWildcard(t *testing.T) {
	ex := New(newCorpus(t))
	ctx := context.Background()

	res, err := ex.Search(ctx, "test_nx", "f1", parser.Query{Type: parser.QueryWildcard, Value: "*est5*", AnalyzeWildcard: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, res.IDs())
	assert.Equal(t, 1, res.TotalHits)
	assert.Equal(t, "test5v", res.Hits[0].Fields["f1"])
	assert.Equal(t, 1.0, res.Hits[0].Score)

	res, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "*обак*"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "8"}, res.IDs())

	res, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "*ОБАК*"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "8"}, res.IDs(), "literals are lowercased")

	res, err = ex.Search(ctx, "test_nx", "f1", parser.Query{Type: parser.QueryWildcard, Value: "test*"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, res.IDs())
	assert.Equal(t, 10, res.MatchedTerms)
}

func TestSearchWildcardAnalyzesLiterals(t *testing.T) {
	ex := New(newCorpus(t))
	ctx := context.Background()

	// "СОБАКОЙ" stems to "собак" only when literals are analyzed
	res, err := ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "СОБАКОЙ*", AnalyzeWildcard: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, "собак*", res.Pattern)
	assert.Equal(t, []string{"3", "8"}, res.IDs())

	res, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "СОБАКОЙ*"}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.IDs())

	// the english analyzer stems the literal
	res, err = ex.Search(ctx, "test_nx", "body", parser.Query{Type: parser.QueryWildcard, Value: "READING*", AnalyzeWildcard: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, "read*", res.Pattern)
	assert.Equal(t, []string{"k"}, res.IDs())
}

func TestSearchKeywordWildcardKeepsCase(t *testing.T) {
	ex := New(newCorpus(t))
	res, err := ex.Search(context.Background(), "test_nx", "tag", parser.Query{Type: parser.QueryWildcard, Value: "New*"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, res.IDs())

	res, err = ex.Search(context.Background(), "test_nx", "tag", parser.Query{Type: parser.QueryWildcard, Value: "new*"}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.IDs())
}

func TestSearchWildcardFoldsLiteralsLikeIndexedText(t *testing.T) {
	e := indexer.NewEngine(nil)
	require.NoError(t, e.CreateIndex("cafes", []schema.FieldMapping{
		{Name: "f1", Type: schema.TypeText},
		{Name: "tag", Type: schema.TypeKeyword},
	}))
	require.NoError(t, e.IndexDocument("cafes", "1", map[string]string{"f1": "café", "tag": "Café"}))
	ex := New(e)
	ctx := context.Background()

	for _, analyze := range []bool{false, true} {
		res, err := ex.Search(ctx, "cafes", "f1", parser.Query{Type: parser.QueryWildcard, Value: "CAFE\u0301*", AnalyzeWildcard: analyze}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, res.IDs(), "analyze=%t", analyze)
	}

	res, err := ex.Search(ctx, "cafes", "tag", parser.Query{Type: parser.QueryWildcard, Value: "Cafe\u0301"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.IDs())
	res, err = ex.Search(ctx, "cafes", "tag", parser.Query{Type: parser.QueryWildcard, Value: "cafe\u0301"}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.IDs())
}

func TestSearchExactAndMatch(t *testing.T) {
	ex := New(newCorpus(t))
	ctx := context.Background()

	res, err := ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryExact, Value: "поп"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "6"}, res.IDs())

	res, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryExact, Value: "ПОПА"}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.IDs(), "exact queries are not analyzed")

	res, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryMatch, Value: "ПОПА СОБАКОЙ"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "6", "8"}, res.IDs())
	assert.Equal(t, 2, res.MatchedTerms)

	res, err = ex.Search(ctx, "test_nx", "tag", parser.Query{Type: parser.QueryExact, Value: "New York"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, res.IDs())
}

func TestSearchLimit(t *testing.T) {
	ex := New(newCorpus(t), WithMaxResults(3))
	ctx := context.Background()
	q := parser.Query{Type: parser.QueryWildcard, Value: "test*"}

	res, err := ex.Search(ctx, "test_nx", "f1", q, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, res.IDs())
	assert.Equal(t, 10, res.TotalHits)

	res, err = ex.Search(ctx, "test_nx", "f1", q, 50)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3)

	res, err = ex.Search(ctx, "test_nx", "f1", q, 0)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 10)
}

func TestSearchErrors(t *testing.T) {
	ex := New(newCorpus(t))
	ctx := context.Background()
	tests := []struct {
		name  string
		index string
		field string
		q     parser.Query
		want  error
	}{
		{"unknown index", "nope", "f1", parser.Query{Type: parser.QueryExact, Value: "x"}, apperrors.ErrIndexNotFound},
		{"unmapped field", "test_nx", "f9", parser.Query{Type: parser.QueryExact, Value: "x"}, apperrors.ErrUnmappedField},
		{"empty pattern", "test_nx", "f1", parser.Query{Type: parser.QueryWildcard}, apperrors.ErrInvalidPattern},
		{"whitespace pattern", "test_nx", "f1", parser.Query{Type: parser.QueryWildcard, Value: "a *"}, apperrors.ErrInvalidPattern},
		{"unknown type", "test_nx", "f1", parser.Query{Type: "fuzzy", Value: "x"}, apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ex.Search(ctx, tt.index, tt.field, tt.q, 0)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSearchRecordsSpans(t *testing.T) {
	ex := New(newCorpus(t))
	ctx, root := tracing.StartSpan(context.Background(), "request")
	_, err := ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "*обак*"}, 0)
	require.NoError(t, err)

	search := root.Child("search")
	require.NotNil(t, search)
	for _, name := range []string{"normalize-pattern", "match-terms", "hydrate"} {
		assert.NotNil(t, search.Child(name), name)
	}
	terms, ok := search.Child("match-terms").Attr("terms")
	require.True(t, ok)
	assert.Equal(t, 1, terms)
}

func TestSearchMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ex := New(newCorpus(t), WithMetrics(m))
	ctx := context.Background()

	_, err := ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "*обак*"}, 0)
	require.NoError(t, err)
	_, err = ex.Search(ctx, "test_nx", "f2", parser.Query{Type: parser.QueryWildcard, Value: "zzz*"}, 0)
	require.NoError(t, err)
	_, err = ex.Search(ctx, "test_nx", "f9", parser.Query{Type: parser.QueryWildcard, Value: "zzz*"}, 0)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("wildcard", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("wildcard", "zero_result")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("wildcard", "error")))
}

func TestCount(t *testing.T) {
	ex := New(newCorpus(t))
	n, err := ex.Count("test_nx")
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}
