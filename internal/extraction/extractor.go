// Package extraction turns an item's typed property tree into field values
// and discovers the fields an index could offer.
package extraction

import (
	"reflect"
	"sort"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Extractor fills field values from typed item data.
// It is stateless and safe for concurrent use.
type Extractor struct{}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractFields resolves every field against data. Map keys are property
// paths relative to data, e.g. "title" or "author:name". Values are always
// reset to a non-nil slice. Fields whose path does not resolve stay empty
// and take their configured type as original type.
func (e *Extractor) ExtractFields(data domain.ComplexData, fields map[string]*domain.Field) {
	nested := make(map[string]map[string]*domain.Field)
	for path, f := range fields {
		f.Values = []any{}
		f.OriginalType = ""

		head, rest := domain.SplitPropertyPath(path)
		if rest != "" {
			if nested[head] == nil {
				nested[head] = make(map[string]*domain.Field)
			}
			nested[head][rest] = f
			continue
		}
		if data == nil {
			f.OriginalType = f.Type
			continue
		}
		prop, ok := data.Get(head)
		if !ok {
			f.OriginalType = f.Type
			continue
		}
		f.Values = collect(prop, f.Values)
		f.OriginalType = domain.ExtractInnerType(prop.Definition().Type)
	}

	for head, sub := range nested {
		var prop domain.TypedData
		ok := data != nil
		if ok {
			prop, ok = data.Get(head)
		}
		if !ok {
			markMissing(sub)
			continue
		}
		switch p := prop.(type) {
		case domain.ListData:
			e.extractList(p, sub)
		case domain.ComplexData:
			e.ExtractFields(p, sub)
		default:
			markMissing(sub)
		}
	}
}

// extractList extracts the nested fields from every element and appends
// the per-element values in list order.
func (e *Extractor) extractList(list domain.ListData, fields map[string]*domain.Field) {
	for _, f := range fields {
		f.OriginalType = f.Type
	}
	for _, el := range list.Elements() {
		var target domain.ComplexData
		switch v := el.(type) {
		case domain.ComplexData:
			target = v
		case domain.ListData:
			e.extractList(v, fields)
			continue
		default:
			continue
		}
		tmp := make(map[string]*domain.Field, len(fields))
		for path, f := range fields {
			tmp[path] = &domain.Field{ID: f.ID, Type: f.Type}
		}
		e.ExtractFields(target, tmp)
		for path, f := range fields {
			got := tmp[path]
			if len(got.Values) > 0 {
				f.Values = append(f.Values, got.Values...)
				f.OriginalType = got.OriginalType
			}
		}
	}
}

func markMissing(fields map[string]*domain.Field) {
	for _, f := range fields {
		f.Values = []any{}
		f.OriginalType = f.Type
	}
}

// collect appends the scalar values of a node. Lists are flattened, complex
// nodes contribute their main property or their first value.
func collect(td domain.TypedData, out []any) []any {
	switch d := td.(type) {
	case domain.ListData:
		for _, el := range d.Elements() {
			out = collect(el, out)
		}
	case domain.ComplexData:
		def := d.Definition()
		if def.MainProperty != "" {
			if child, ok := d.Get(def.MainProperty); ok {
				return collect(child, out)
			}
		}
		if v, ok := firstValue(def, d.Value()); ok {
			out = append(out, v)
		}
	default:
		if v := td.Value(); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// firstValue returns the first scalar of a complex node's native value,
// in property definition order.
func firstValue(def *domain.DataDefinition, raw any) (any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		for _, p := range def.Properties {
			if child, ok := v[p.Name]; ok && child != nil {
				return firstValue(p, child)
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v[k] != nil {
				return firstValue(&domain.DataDefinition{}, v[k])
			}
		}
		return nil, false
	default:
		if k := reflect.ValueOf(v).Kind(); k == reflect.Slice || k == reflect.Array {
			for _, el := range toSlice(v) {
				if el != nil {
					return firstValue(def, el)
				}
			}
			return nil, false
		}
		return v, true
	}
}
