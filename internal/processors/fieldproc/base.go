package fieldproc

import "github.com/custodia-labs/searchapi/internal/core/domain"

// ValueFunc transforms a single field value. Implementations return
// values they do not handle unchanged.
type ValueFunc func(value any) any

// Base is a processor that rewrites the values of a selectable subset of
// fields. A field is processed when its inner type passes TestType and it
// is selected by the "fields" setting. An empty selection selects every
// eligible field.
type Base struct {
	Plugin

	process ValueFunc
	types   []string
	fields  map[string]bool
	index   map[string]domain.FieldConfig
}

// NewBase creates a field-scoped processor. types lists the eligible inner
// types; none means fulltext types. indexFields is the field configuration
// of the owning index and is used to type query filters.
func NewBase(p Plugin, settings map[string]any, indexFields map[string]domain.FieldConfig, process ValueFunc, types ...string) *Base {
	b := &Base{
		Plugin:  p,
		process: process,
		types:   types,
		index:   indexFields,
	}
	if selected := StringList(settings, "fields"); len(selected) > 0 {
		b.fields = make(map[string]bool, len(selected))
		for _, id := range selected {
			b.fields[id] = true
		}
	}
	return b
}

// TestType reports whether fields of the type are eligible at all.
func (b *Base) TestType(t string) bool {
	return domain.IsTextType(t, b.types...)
}

// TestField reports whether the field is processed.
func (b *Base) TestField(id string, f *domain.Field) bool {
	if !b.TestType(f.Type) {
		return false
	}
	return b.fields == nil || b.fields[id]
}

// Process applies the value transform.
func (b *Base) Process(value any) any {
	return b.process(value)
}

// PreprocessIndexItems rewrites every value of every passing field in place.
// Other fields are not touched.
func (b *Base) PreprocessIndexItems(items map[string]*domain.Item) {
	for _, item := range items {
		for id, f := range item.Fields {
			if !b.TestField(id, f) {
				continue
			}
			for i, v := range f.Values {
				f.Values[i] = b.process(v)
			}
		}
	}
}

// PreprocessSearchQuery processes the search keys when any searched
// fulltext field passes TestField, and the values of filters on passing fields.
func (b *Base) PreprocessSearchQuery(q *domain.Query) {
	if q.HasKeys() && b.KeysApply(q) {
		for i, k := range q.Keys {
			if s, ok := b.process(k).(string); ok {
				q.Keys[i] = s
			}
		}
	}
	for i, flt := range q.Filters {
		cfg, ok := b.index[flt.Field]
		if !ok || !b.TestField(flt.Field, domain.NewField(flt.Field, cfg.Type)) {
			continue
		}
		q.Filters[i].Value = b.processFilterValue(flt.Value)
	}
}

// QueryFields returns the fulltext fields searched by q.
func (b *Base) QueryFields(q *domain.Query) []string {
	if len(q.FulltextFields) > 0 {
		return q.FulltextFields
	}
	var out []string
	for id, cfg := range b.index {
		if domain.IsTextType(cfg.Type) {
			out = append(out, id)
		}
	}
	return out
}

// KeysApply reports whether any fulltext field searched by q passes TestField.
func (b *Base) KeysApply(q *domain.Query) bool {
	for _, id := range b.QueryFields(q) {
		cfg, ok := b.index[id]
		if !ok {
			continue
		}
		if b.TestField(id, domain.NewField(id, cfg.Type)) {
			return true
		}
	}
	return false
}

func (b *Base) processFilterValue(v any) any {
	switch vals := v.(type) {
	case []any:
		out := make([]any, len(vals))
		for i, el := range vals {
			out[i] = b.process(el)
		}
		return out
	case []string:
		out := make([]string, len(vals))
		for i, el := range vals {
			if s, ok := b.process(el).(string); ok {
				out[i] = s
			} else {
				out[i] = el
			}
		}
		return out
	default:
		return b.process(v)
	}
}
