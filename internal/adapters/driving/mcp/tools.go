package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Index       string        `json:"index" jsonschema:"id of the index to search"`
	Query       string        `json:"query,omitempty" jsonschema:"search keywords; empty returns all items"`
	Mode        string        `json:"mode,omitempty" jsonschema:"how the query is split into keys: terms (default), phrase or direct"`
	Conjunction string        `json:"conjunction,omitempty" jsonschema:"AND (default) or OR"`
	Fields      []string      `json:"fields,omitempty" jsonschema:"fulltext fields to match keys against"`
	Filters     []FilterInput `json:"filters,omitempty" jsonschema:"field conditions every result must satisfy"`
	Sorts       []SortInput   `json:"sorts,omitempty" jsonschema:"result ordering; search_api_relevance sorts by score"`
	Offset      int           `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Limit       int           `json:"limit,omitempty" jsonschema:"maximum number of results to return (defaults to the configured search limit)"`
}

// FilterInput is one field condition.
type FilterInput struct {
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Operator string `json:"operator,omitempty" jsonschema:"one of = <> < <= > >= (default =)"`
}

// SortInput orders results by a field.
type SortInput struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Count    int                  `json:"count"`
	Total    int                  `json:"total"`
	Ignored  []string             `json:"ignored,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ID         string           `json:"id"`
	Datasource string           `json:"datasource"`
	Score      float64          `json:"score"`
	Excerpt    string           `json:"excerpt,omitempty"`
	Fields     map[string][]any `json:"fields,omitempty"`
}

// IndexStatusInput is the input schema for the index_status tool.
type IndexStatusInput struct {
	Index string `json:"index,omitempty" jsonschema:"index id; empty reports every index"`
}

// IndexStatusOutput is the output schema for the index_status tool.
type IndexStatusOutput struct {
	Indexes []IndexStatus `json:"indexes"`
}

// IndexStatus reports the tracking state of one index.
type IndexStatus struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Server   string  `json:"server"`
	Enabled  bool    `json:"enabled"`
	ReadOnly bool    `json:"read_only"`
	Indexed  int     `json:"indexed"`
	Total    int     `json:"total"`
	Pending  int     `json:"pending"`
	Progress float64 `json:"progress"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search one index by keywords, with optional filters, sorts and paging",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report how many items of each index are indexed and pending",
	}, s.handleIndexStatus)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	q, err := buildQuery(input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	rs, err := s.ports.Search.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(rs.Results)),
		Count:    len(rs.Results),
		Total:    rs.ResultCount,
		Ignored:  rs.Ignored,
		Warnings: rs.Warnings,
	}
	for i, r := range rs.Results {
		output.Results[i] = SearchResultOutput{
			ID:         r.ID,
			Datasource: r.DatasourceID,
			Score:      r.Score,
			Excerpt:    r.Excerpt,
			Fields:     r.Fields,
		}
	}

	return nil, output, nil
}

// buildQuery converts tool input into a domain query.
func buildQuery(input SearchInput) (*domain.Query, error) {
	if input.Index == "" {
		return nil, fmt.Errorf("index is required: %w", domain.ErrInvalidInput)
	}
	mode := domain.ParseMode(input.Mode)
	if input.Mode != "" && !mode.IsValid() {
		return nil, fmt.Errorf("parse mode %q: %w", input.Mode, domain.ErrInvalidInput)
	}

	q := domain.NewQuery(input.Index, domain.ParseKeys(input.Query, mode)...)
	if input.Conjunction != "" {
		q.Conjunction = domain.Conjunction(input.Conjunction)
	}
	q.FulltextFields = input.Fields
	q.Offset = input.Offset
	q.Limit = input.Limit
	for _, f := range input.Filters {
		if f.Field == "" {
			return nil, fmt.Errorf("filter without field: %w", domain.ErrInvalidInput)
		}
		q.Filters = append(q.Filters, domain.Filter{Field: f.Field, Value: f.Value, Operator: f.Operator})
	}
	for _, srt := range input.Sorts {
		q.Sorts = append(q.Sorts, domain.Sort{Field: srt.Field, Descending: srt.Descending})
	}
	return q, nil
}

func (s *Server) handleIndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	if s.ports.Index == nil {
		return nil, IndexStatusOutput{}, ErrMissingIndexService
	}

	var configs []*domain.IndexConfig
	if input.Index != "" {
		cfg, err := s.ports.Index.Config(ctx, input.Index)
		if err != nil {
			return nil, IndexStatusOutput{}, err
		}
		configs = append(configs, cfg)
	} else {
		all, err := s.ports.Index.List(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, err
		}
		configs = all
	}

	output := IndexStatusOutput{Indexes: make([]IndexStatus, 0, len(configs))}
	for _, cfg := range configs {
		st, err := s.ports.Index.Status(ctx, cfg.ID)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("status of %s: %w", cfg.ID, err)
		}
		output.Indexes = append(output.Indexes, IndexStatus{
			ID:       cfg.ID,
			Name:     cfg.Name,
			Server:   cfg.ServerID,
			Enabled:  cfg.Enabled,
			ReadOnly: cfg.ReadOnly,
			Indexed:  st.Indexed,
			Total:    st.Total,
			Pending:  st.Pending(),
			Progress: st.Progress(),
		})
	}
	return nil, output, nil
}
