package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func resetSearchFlags() {
	searchLimit, searchOffset = 0, 0
	searchJSON, searchOr = false, false
	searchMode = string(domain.ParseTerms)
	searchFields, searchFilters, searchSorts = nil, nil, nil
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [index-id] [keys...]", searchCmd.Use)
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	_, err := execute("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestSearchCmd_BuildsQuery(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetSearchFlags()

	out, err := execute("search", "articles", "quick", `"brown fox"`,
		"-n", "5", "--offset", "10", "--or",
		"--fields", "node|title,node|body",
		"--filter", "node|status=true", "--filter", "node|created>=100",
		"--sort", "node|created:desc", "--sort", "search_api_relevance")
	require.NoError(t, err)
	assert.Contains(t, out, "Results (1 of 1):")

	q := ts.search.last
	require.NotNil(t, q)
	assert.Equal(t, "articles", q.IndexID)
	assert.Equal(t, []string{"quick", "brown fox"}, q.Keys)
	assert.Equal(t, domain.ConjunctionOr, q.Conjunction)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, []string{"node|title", "node|body"}, q.FulltextFields)
	assert.Equal(t, []domain.Filter{
		{Field: "node|status", Operator: "=", Value: "true"},
		{Field: "node|created", Operator: ">=", Value: "100"},
	}, q.Filters)
	assert.Equal(t, []domain.Sort{
		{Field: "node|created", Descending: true},
		{Field: domain.RelevanceField},
	}, q.Sorts)
}

func TestSearchCmd_PhraseMode(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetSearchFlags()

	_, err := execute("search", "articles", "quick", "brown", "--mode", "phrase")
	require.NoError(t, err)
	assert.Equal(t, []string{"quick brown"}, ts.search.last.Keys)

	_, err = execute("search", "articles", "x", "--mode", "regex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parse mode")
}

func TestSearchCmd_TableOutput(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	rs := domain.NewResultSet(&domain.Query{Offset: 20})
	rs.ResultCount = 30
	rs.Ignored = []string{"the"}
	rs.Warnings = []string{"stopwords removed every key"}
	rs.Results = []domain.Result{{ID: "node|7", Score: 2, Excerpt: "a quick fox"}}
	ts.search.rs = rs

	out, err := execute("search", "articles", "fox")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: stopwords removed every key")
	assert.Contains(t, out, "Ignored keys: the")
	assert.Contains(t, out, "Results (1 of 30):")
	assert.Contains(t, out, "[21] node|7 (2.00)")
	assert.Contains(t, out, "a quick fox")
}

func TestSearchCmd_NoResults(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.rs = domain.NewResultSet(nil)

	out, err := execute("search", "articles", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer resetSearchFlags()

	out, err := execute("search", "articles", "--json", "fox")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "node|1"`)
	assert.Contains(t, out, `"datasource": "node"`)
	assert.Contains(t, out, `"total": 1`)
	assert.Contains(t, out, `"excerpt": "the quick fox"`)
}

func TestSearchCmd_Errors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetSearchFlags()

	ts.search.err = domain.ErrNotFound
	_, err := execute("search", "missing", "fox")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute("search", "articles", "--filter", "novalue", "fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")

	searchService = nil
	_, err = execute("search", "articles", "fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		spec string
		want domain.Filter
	}{
		{"a=1", domain.Filter{Field: "a", Operator: "=", Value: "1"}},
		{"a<>1", domain.Filter{Field: "a", Operator: "<>", Value: "1"}},
		{"a<1", domain.Filter{Field: "a", Operator: "<", Value: "1"}},
		{"a<=1", domain.Filter{Field: "a", Operator: "<=", Value: "1"}},
		{"a>1", domain.Filter{Field: "a", Operator: ">", Value: "1"}},
		{"a>=1", domain.Filter{Field: "a", Operator: ">=", Value: "1"}},
		{"a=b<c", domain.Filter{Field: "a", Operator: "=", Value: "b<c"}},
		{"node|x=", domain.Filter{Field: "node|x", Operator: "=", Value: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseFilter(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"novalue", "=1", ""} {
		_, err := parseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, domain.Sort{Field: "a"}, parseSort("a"))
	assert.Equal(t, domain.Sort{Field: "a", Descending: true}, parseSort("a:desc"))
	assert.Equal(t, domain.Sort{Field: "a", Descending: true}, parseSort("a:DESC"))
	assert.Equal(t, domain.Sort{Field: "a"}, parseSort("a:asc"))
}
