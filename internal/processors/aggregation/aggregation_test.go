package aggregation

import (
	"errors"
	"testing"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/extraction"
)

func articleItem(values map[string]any) *domain.Item {
	def := &domain.DataDefinition{
		Name: "article",
		Properties: []*domain.DataDefinition{
			{Name: "title", Type: domain.TypeText},
			{Name: "body", Type: domain.TypeText},
			{Name: "ratings", Type: "list<integer>"},
		},
	}
	return domain.NewItem("articles", "1", extraction.WrapItem(def, values))
}

func newProcessor(t *testing.T, kind string, fields ...string) *Processor {
	t.Helper()
	src := make([]any, len(fields))
	for i, f := range fields {
		src[i] = f
	}
	ctx := driven.ProcessorContext{
		Fields:    map[string]domain.FieldConfig{"agg": {Type: typeOf[kind]}},
		Extractor: extraction.New(),
	}
	p, err := New(ctx, map[string]any{
		"fields": map[string]any{
			"agg": map[string]any{"label": "Aggregated", "type": kind, "fields": src},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPreprocessIndexItems_Fulltext(t *testing.T) {
	p := newProcessor(t, Fulltext, "title", "body")

	item := articleItem(map[string]any{"title": "Foo", "body": "Bar"})
	items := map[string]*domain.Item{item.ID: item}
	p.PreprocessIndexItems(items)

	f, ok := item.GetField("agg")
	if !ok {
		t.Fatal("aggregated field missing")
	}
	if len(f.Values) != 1 || f.Values[0] != "Foo\n\nBar" {
		t.Errorf("expected [\"Foo\\n\\nBar\"], got %#v", f.Values)
	}
	if f.Type != domain.TypeText {
		t.Errorf("expected type text, got %s", f.Type)
	}
}

func TestPreprocessIndexItems_CountOfNothingIsZero(t *testing.T) {
	p := newProcessor(t, Count, "title", "body")

	item := articleItem(map[string]any{})
	p.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

	f, ok := item.GetField("agg")
	if !ok {
		t.Fatal("aggregated field missing")
	}
	if len(f.Values) != 1 || f.Values[0] != 0 {
		t.Errorf("expected [0], got %#v", f.Values)
	}
}

func TestPreprocessIndexItems_EmptyNonCountHasNoValue(t *testing.T) {
	for _, kind := range []string{Fulltext, Sum, Max, Min, First} {
		t.Run(kind, func(t *testing.T) {
			p := newProcessor(t, kind, "title")
			item := articleItem(map[string]any{})
			p.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

			if f, ok := item.GetField("agg"); ok {
				t.Errorf("expected no aggregated field, got %#v", f.Values)
			}
		})
	}
}

func TestPreprocessIndexItems_OnlyConfiguredFields(t *testing.T) {
	p, err := New(driven.ProcessorContext{
		Fields:    map[string]domain.FieldConfig{"combined": {Type: domain.TypeText}},
		Extractor: extraction.New(),
	}, map[string]any{
		"fields": map[string]any{
			"combined": map[string]any{"type": Fulltext, "fields": []any{"title", "body"}},
			"total":    map[string]any{"type": Count, "fields": []any{"title", "body"}},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(p.Aggregates()) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(p.Aggregates()))
	}

	item := articleItem(map[string]any{"title": "Foo", "body": "Bar"})
	p.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

	if _, ok := item.GetField("combined"); !ok {
		t.Error("configured aggregate missing")
	}
	if f, ok := item.GetField("total"); ok {
		t.Errorf("aggregate that is not an index field was added: %#v", f.Values)
	}
}

func TestPreprocessIndexItems_UsesExistingFields(t *testing.T) {
	p := newProcessor(t, Sum, "ratings")

	item := articleItem(map[string]any{"ratings": []any{100}})
	existing := domain.NewField("ratings", "list<integer>")
	existing.SetValues([]any{2, 3, 5})
	item.SetField(existing)

	p.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

	f, _ := item.GetField("agg")
	if len(f.Values) != 1 || f.Values[0] != 10.0 {
		t.Errorf("expected [10], got %#v", f.Values)
	}
}

func TestPreprocessIndexItems_ExtractsListValues(t *testing.T) {
	p := newProcessor(t, Max, "ratings")

	item := articleItem(map[string]any{"ratings": []any{4, 9, 2}})
	p.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

	f, _ := item.GetField("agg")
	if len(f.Values) != 1 || f.Values[0] != 9.0 {
		t.Errorf("expected [9], got %#v", f.Values)
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		kind   string
		values []any
		want   any
		ok     bool
	}{
		{Fulltext, []any{"a", "b", "c"}, "a\n\nb\n\nc", true},
		{Sum, []any{1, 2.5, "3"}, 6.5, true},
		{Count, []any{"x", "y"}, 2, true},
		{Count, nil, 0, true},
		{Max, []any{3, 7, 1}, 7.0, true},
		{Min, []any{3, 7, 1}, 1.0, true},
		{First, []any{"one", "two"}, "one", true},
		{First, nil, nil, false},
		{"unknown", []any{1}, nil, false},
	}

	for _, tt := range tests {
		got, ok := Reduce(tt.kind, tt.values)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Reduce(%s, %v) = %v, %v; want %v, %v", tt.kind, tt.values, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{"unknown type", map[string]any{"fields": map[string]any{
			"agg": map[string]any{"type": "median", "fields": []any{"a"}},
		}}},
		{"no source fields", map[string]any{"fields": map[string]any{
			"agg": map[string]any{"type": Sum},
		}}},
		{"not a table", map[string]any{"fields": map[string]any{"agg": "sum"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(driven.ProcessorContext{}, tt.settings)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAlterPropertyDefinitions(t *testing.T) {
	p := newProcessor(t, Count, "title")

	props := &domain.DataDefinition{}
	p.AlterPropertyDefinitions(props, "articles")
	if len(props.Properties) != 0 {
		t.Errorf("expected no properties for datasource level, got %d", len(props.Properties))
	}

	p.AlterPropertyDefinitions(props, "")
	def, ok := props.Property("agg")
	if !ok {
		t.Fatal("expected aggregated property")
	}
	if def.Type != domain.TypeInteger {
		t.Errorf("expected integer, got %s", def.Type)
	}

	p.AlterPropertyDefinitions(props, "")
	if len(props.Properties) != 1 {
		t.Errorf("expected property added once, got %d", len(props.Properties))
	}
}

func TestSupportsStage(t *testing.T) {
	p := newProcessor(t, Count, "title")
	if !p.SupportsStage(domain.StagePreprocessIndex) {
		t.Error("expected index preprocessing support")
	}
	if p.SupportsStage(domain.StagePreprocessQuery) {
		t.Error("did not expect query preprocessing support")
	}
}
