package fieldproc

import (
	"strings"
	"testing"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func upper(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}

func newTestBase(settings map[string]any) *Base {
	index := map[string]domain.FieldConfig{
		"title":  {Type: domain.TypeText},
		"body":   {Type: "list<text>"},
		"status": {Type: domain.TypeString},
		"nid":    {Type: domain.TypeInteger},
	}
	p := NewPlugin("upper", "Upper", "Upper-cases text", map[domain.Stage]int{
		domain.StagePreprocessIndex: 0,
		domain.StagePreprocessQuery: 0,
	})
	return NewBase(p, settings, index, upper)
}

func TestBase_TestField(t *testing.T) {
	b := newTestBase(nil)

	tests := []struct {
		id   string
		typ  string
		want bool
	}{
		{"title", domain.TypeText, true},
		{"body", "list<list<text>>", true},
		{"status", domain.TypeString, false},
		{"nid", domain.TypeInteger, false},
	}
	for _, tt := range tests {
		if got := b.TestField(tt.id, domain.NewField(tt.id, tt.typ)); got != tt.want {
			t.Errorf("TestField(%s, %s) = %v, want %v", tt.id, tt.typ, got, tt.want)
		}
	}
}

func TestBase_TestField_Selection(t *testing.T) {
	b := newTestBase(map[string]any{"fields": []any{"body"}})

	if b.TestField("title", domain.NewField("title", domain.TypeText)) {
		t.Error("unselected field should not pass")
	}
	if !b.TestField("body", domain.NewField("body", domain.TypeText)) {
		t.Error("selected field should pass")
	}
}

func TestBase_TestField_CustomTypes(t *testing.T) {
	p := NewPlugin("p", "P", "", nil)
	b := NewBase(p, nil, nil, upper, domain.TypeString)

	if !b.TestField("status", domain.NewField("status", domain.TypeString)) {
		t.Error("string field should pass when string is eligible")
	}
	if b.TestField("title", domain.NewField("title", domain.TypeText)) {
		t.Error("text field should not pass when only string is eligible")
	}
}

func TestBase_PreprocessIndexItems(t *testing.T) {
	b := newTestBase(nil)

	item := domain.NewItem("entity:node", "1", nil)
	title := domain.NewField("title", domain.TypeText)
	title.SetValues([]any{"foo", 3})
	status := domain.NewField("status", domain.TypeString)
	status.SetValues([]any{"draft"})
	item.SetField(title)
	item.SetField(status)
	statusValues := status.Values

	b.PreprocessIndexItems(map[string]*domain.Item{item.ID: item})

	if title.Values[0] != "FOO" || title.Values[1] != 3 {
		t.Errorf("unexpected title values: %v", title.Values)
	}
	if item.Fields["status"] != status {
		t.Error("non-passing field must keep its identity")
	}
	if &status.Values[0] != &statusValues[0] || status.Values[0] != "draft" {
		t.Error("non-passing field values must be left untouched")
	}
}

func TestBase_PreprocessSearchQuery(t *testing.T) {
	b := newTestBase(nil)

	q := domain.NewQuery("content", "foo", "bar")
	q.Filters = []domain.Filter{
		{Field: "title", Value: "baz", Operator: domain.OperatorEquals},
		{Field: "status", Value: "draft", Operator: domain.OperatorEquals},
		{Field: "body", Value: []any{"x", "y"}, Operator: domain.OperatorEquals},
		{Field: "missing", Value: "m", Operator: domain.OperatorEquals},
	}
	b.PreprocessSearchQuery(q)

	if q.Keys[0] != "FOO" || q.Keys[1] != "BAR" {
		t.Errorf("unexpected keys: %v", q.Keys)
	}
	if q.Filters[0].Value != "BAZ" {
		t.Errorf("expected fulltext filter to be processed, got %v", q.Filters[0].Value)
	}
	if q.Filters[1].Value != "draft" {
		t.Errorf("expected string filter untouched, got %v", q.Filters[1].Value)
	}
	if vals := q.Filters[2].Value.([]any); vals[0] != "X" || vals[1] != "Y" {
		t.Errorf("expected list filter values processed, got %v", vals)
	}
	if q.Filters[3].Value != "m" {
		t.Errorf("unknown field filter should be untouched, got %v", q.Filters[3].Value)
	}
}

func TestBase_PreprocessSearchQuery_KeysOnlyForSelectedFields(t *testing.T) {
	b := newTestBase(map[string]any{"fields": []any{"body"}})

	q := domain.NewQuery("content", "foo")
	q.FulltextFields = []string{"title"}
	b.PreprocessSearchQuery(q)
	if q.Keys[0] != "foo" {
		t.Errorf("keys searched only in unselected fields should be untouched, got %q", q.Keys[0])
	}

	q.FulltextFields = []string{"title", "body"}
	b.PreprocessSearchQuery(q)
	if q.Keys[0] != "FOO" {
		t.Errorf("expected keys processed, got %q", q.Keys[0])
	}
}

func TestPlugin_Stages(t *testing.T) {
	p := NewPlugin("p", "Label", "Desc", map[domain.Stage]int{domain.StagePreprocessIndex: -5})

	if p.ID() != "p" || p.Label() != "Label" || p.Description() != "Desc" {
		t.Error("unexpected metadata")
	}
	if !p.SupportsStage(domain.StagePreprocessIndex) || p.DefaultWeight(domain.StagePreprocessIndex) != -5 {
		t.Error("expected preprocess_index with weight -5")
	}
	if p.SupportsStage(domain.StagePostprocessQuery) {
		t.Error("postprocess_query was not declared")
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"strings", []string{"a", "b"}, []string{"a", "b"}},
		{"any", []any{"a", 1, ""}, []string{"a"}},
		{"checkboxes", map[string]any{"b": "b", "a": true, "c": false, "d": "0"}, []string{"a", "b"}},
		{"csv", "a, b ,,c", []string{"a", "b", "c"}},
		{"missing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StringList(map[string]any{"k": tt.in}, "k")
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("StringList = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntBoolString(t *testing.T) {
	s := map[string]any{"i": int64(3), "f": 2.0, "b": true, "s": "x"}
	if Int(s, "i", 0) != 3 || Int(s, "f", 0) != 2 || Int(s, "none", 7) != 7 {
		t.Error("unexpected Int results")
	}
	if !Bool(s, "b", false) || Bool(s, "none", false) {
		t.Error("unexpected Bool results")
	}
	if String(s, "s", "") != "x" || String(s, "none", "d") != "d" {
		t.Error("unexpected String results")
	}
}
