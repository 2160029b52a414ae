package extraction

import (
	"reflect"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Wrap builds a typed data tree over plain Go values following def.
// Complex nodes expect map[string]any values. List nodes accept any slice,
// and a single non-slice value is treated as a one-element list.
func Wrap(def *domain.DataDefinition, value any) domain.TypedData {
	switch {
	case def.IsList():
		elemDef := def.ElementDefinition()
		raw := toSlice(value)
		elems := make([]domain.TypedData, 0, len(raw))
		for _, v := range raw {
			if v == nil {
				continue
			}
			elems = append(elems, Wrap(elemDef, v))
		}
		return &listData{def: def, raw: value, elems: elems}
	case def.IsComplex():
		m, _ := value.(map[string]any)
		return &complexData{def: def, raw: value, values: m}
	default:
		return &scalarData{def: def, raw: value}
	}
}

// WrapItem wraps the property map of an item.
func WrapItem(def *domain.DataDefinition, values map[string]any) domain.ComplexData {
	return &complexData{def: def, raw: values, values: values}
}

type scalarData struct {
	def *domain.DataDefinition
	raw any
}

func (d *scalarData) Definition() *domain.DataDefinition { return d.def }
func (d *scalarData) Value() any                         { return d.raw }

type listData struct {
	def   *domain.DataDefinition
	raw   any
	elems []domain.TypedData
}

func (d *listData) Definition() *domain.DataDefinition { return d.def }
func (d *listData) Value() any                         { return d.raw }
func (d *listData) Elements() []domain.TypedData       { return d.elems }

type complexData struct {
	def    *domain.DataDefinition
	raw    any
	values map[string]any
}

func (d *complexData) Definition() *domain.DataDefinition { return d.def }
func (d *complexData) Value() any                         { return d.raw }

func (d *complexData) Get(name string) (domain.TypedData, bool) {
	prop, ok := d.def.Property(name)
	if !ok {
		return nil, false
	}
	v, ok := d.values[name]
	if !ok || v == nil {
		return nil, false
	}
	return Wrap(prop, v), true
}

func (d *complexData) IsEmpty() bool {
	return len(d.values) == 0 && d.raw == nil
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
