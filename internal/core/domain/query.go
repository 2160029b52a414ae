package domain

// Conjunction combines query keys or filters.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "AND"
	ConjunctionOr  Conjunction = "OR"
)

// Filter operators.
const (
	OperatorEquals    = "="
	OperatorNotEquals = "<>"
	OperatorLess      = "<"
	OperatorLessEq    = "<="
	OperatorGreater   = ">"
	OperatorGreaterEq = ">="
)

// Filter restricts results to items whose field matches a value.
type Filter struct {
	Field    string
	Value    any
	Operator string
}

// Sort orders results by a field. The field "search_api_relevance" sorts by score.
type Sort struct {
	Field      string
	Descending bool
}

// RelevanceField is the pseudo field used to sort by score.
const RelevanceField = "search_api_relevance"

// Query is a search request against one index.
type Query struct {
	// IndexID identifies the index to search.
	IndexID string

	// Keys are the fulltext search keywords.
	Keys []string

	// Conjunction combines Keys. Defaults to AND.
	Conjunction Conjunction

	// FulltextFields restricts keyword matching. Empty means all fulltext fields.
	FulltextFields []string

	// Filters restrict results by field value.
	Filters []Filter

	// Sorts order the results.
	Sorts []Sort

	// Offset is the number of results to skip.
	Offset int

	// Limit is the maximum number of results. Zero means backend default.
	Limit int

	// Options holds backend or processor specific flags.
	Options map[string]any
}

// NewQuery creates a query with AND conjunction.
func NewQuery(indexID string, keys ...string) *Query {
	return &Query{
		IndexID:     indexID,
		Keys:        keys,
		Conjunction: ConjunctionAnd,
		Options:     make(map[string]any),
	}
}

// HasKeys reports whether the query carries any non-empty fulltext key.
func (q *Query) HasKeys() bool {
	for _, k := range q.Keys {
		if k != "" {
			return true
		}
	}
	return false
}

// Option returns a query option.
func (q *Query) Option(key string) (any, bool) {
	v, ok := q.Options[key]
	return v, ok
}

// SetOption sets a query option.
func (q *Query) SetOption(key string, v any) {
	if q.Options == nil {
		q.Options = make(map[string]any)
	}
	q.Options[key] = v
}

// Result is one hit in a result set.
type Result struct {
	// ID is the combined item id.
	ID string

	// DatasourceID identifies the item's datasource.
	DatasourceID string

	// Score is the relevance score.
	Score float64

	// Excerpt is an optional highlighted snippet.
	Excerpt string

	// Fields holds retrieved field values, if the backend returns any.
	Fields map[string][]any
}

// ResultSet is the outcome of a search.
type ResultSet struct {
	// Query is the executed query.
	Query *Query

	// Results are the hits in order.
	Results []Result

	// ResultCount is the total number of matches, ignoring paging.
	ResultCount int

	// Ignored lists search keys that were dropped during processing.
	Ignored []string

	// Warnings lists non-fatal problems reported to the caller.
	Warnings []string

	// Extra holds processor or backend specific response data.
	Extra map[string]any
}

// NewResultSet creates an empty result set for q.
func NewResultSet(q *Query) *ResultSet {
	return &ResultSet{
		Query:   q,
		Results: []Result{},
		Extra:   make(map[string]any),
	}
}

// AddIgnored records dropped search keys, skipping duplicates.
func (rs *ResultSet) AddIgnored(keys ...string) {
	for _, k := range keys {
		if !containsString(rs.Ignored, k) {
			rs.Ignored = append(rs.Ignored, k)
		}
	}
}

// AddWarning records a warning, skipping duplicates.
func (rs *ResultSet) AddWarning(w string) {
	if !containsString(rs.Warnings, w) {
		rs.Warnings = append(rs.Warnings, w)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
