package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

var (
	searchLimit   int
	searchOffset  int
	searchJSON    bool
	searchMode    string
	searchOr      bool
	searchFields  []string
	searchFilters []string
	searchSorts   []string
)

var searchCmd = &cobra.Command{
	Use:   "search [index-id] [keys...]",
	Short: "Search an index",
	Long: `Runs a query against one index. The keys pass through the index's
query processors before they reach the server, and results pass through
its result processors afterwards.

Filters take the form field=value, field<>value, field<value, field<=value,
field>value or field>=value. Sorts take the form field or field:desc.

Example:
  searchapi search articles quick "brown fox" --filter node|status=true --sort node|created:desc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	f.IntVar(&searchOffset, "offset", 0, "number of results to skip")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	f.StringVar(&searchMode, "mode", string(domain.ParseTerms), "key parsing: terms, phrase or direct")
	f.BoolVar(&searchOr, "or", false, "match any key instead of all keys")
	f.StringSliceVar(&searchFields, "fields", nil, "fulltext fields to search (default: all)")
	f.StringArrayVar(&searchFilters, "filter", nil, "filter condition (repeatable)")
	f.StringArrayVar(&searchSorts, "sort", nil, "sort field, optionally field:desc (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.ParseMode(searchMode)
	if !mode.IsValid() {
		return fmt.Errorf("invalid parse mode %q", searchMode)
	}

	q := domain.NewQuery(args[0], domain.ParseKeys(strings.Join(args[1:], " "), mode)...)
	if searchOr {
		q.Conjunction = domain.ConjunctionOr
	}
	q.FulltextFields = searchFields
	q.Offset = searchOffset
	q.Limit = searchLimit
	for _, spec := range searchFilters {
		f, err := parseFilter(spec)
		if err != nil {
			return err
		}
		q.Filters = append(q.Filters, f)
	}
	for _, spec := range searchSorts {
		q.Sorts = append(q.Sorts, parseSort(spec))
	}

	rs, err := searchService.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, rs)
	}
	return outputSearchTable(cmd, rs)
}

// filterOperators is ordered so two-character operators match first.
var filterOperators = []string{
	domain.OperatorNotEquals,
	domain.OperatorLessEq,
	domain.OperatorGreaterEq,
	domain.OperatorEquals,
	domain.OperatorLess,
	domain.OperatorGreater,
}

// parseFilter parses "field<op>value". The value stays a string; backends
// convert it to the field type.
func parseFilter(spec string) (domain.Filter, error) {
	best := -1
	var op string
	for _, candidate := range filterOperators {
		i := strings.Index(spec, candidate)
		if i <= 0 {
			continue
		}
		if best == -1 || i < best || (i == best && len(candidate) > len(op)) {
			best, op = i, candidate
		}
	}
	if best == -1 {
		return domain.Filter{}, fmt.Errorf("invalid filter %q: expected field<op>value", spec)
	}
	return domain.Filter{
		Field:    spec[:best],
		Operator: op,
		Value:    spec[best+len(op):],
	}, nil
}

// parseSort parses "field" or "field:desc".
func parseSort(spec string) domain.Sort {
	field, dir, _ := strings.Cut(spec, ":")
	return domain.Sort{Field: field, Descending: strings.EqualFold(dir, "desc")}
}

func outputSearchJSON(cmd *cobra.Command, rs *domain.ResultSet) error {
	type result struct {
		ID         string           `json:"id"`
		Datasource string           `json:"datasource"`
		Score      float64          `json:"score"`
		Excerpt    string           `json:"excerpt,omitempty"`
		Fields     map[string][]any `json:"fields,omitempty"`
	}
	out := struct {
		Total    int      `json:"total"`
		Results  []result `json:"results"`
		Ignored  []string `json:"ignored,omitempty"`
		Warnings []string `json:"warnings,omitempty"`
	}{
		Total:    rs.ResultCount,
		Results:  make([]result, len(rs.Results)),
		Ignored:  rs.Ignored,
		Warnings: rs.Warnings,
	}
	for i, r := range rs.Results {
		out.Results[i] = result{ID: r.ID, Datasource: r.DatasourceID, Score: r.Score, Excerpt: r.Excerpt, Fields: r.Fields}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, rs *domain.ResultSet) error {
	for _, w := range rs.Warnings {
		cmd.Println(warningStyle.Render("Warning: " + w))
	}
	if len(rs.Ignored) > 0 {
		cmd.Println(mutedStyle.Render("Ignored keys: " + strings.Join(rs.Ignored, ", ")))
	}

	if len(rs.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println(title(fmt.Sprintf("Results (%d of %d):", len(rs.Results), rs.ResultCount)))
	cmd.Println()
	offset := 0
	if rs.Query != nil {
		offset = rs.Query.Offset
	}
	for i, r := range rs.Results {
		// Format: [N] ID (Score)
		cmd.Printf("  [%d] %s (%.2f)\n", offset+i+1, r.ID, r.Score)
		if r.Excerpt != "" {
			cmd.Printf("      %s\n", r.Excerpt)
		}
		cmd.Println()
	}
	return nil
}
