package domain

import "strings"

const (
	// DatasourceIDSeparator separates a datasource id from an item or property id.
	DatasourceIDSeparator = "|"

	// PropertySeparator separates the segments of a nested property path.
	PropertySeparator = ":"

	// DefaultBoost is the boost of a field with no configured boost.
	DefaultBoost = 1.0
)

// Field is a typed, multi-valued datum extracted from an item.
type Field struct {
	// ID is the field identifier, unique per index.
	ID string

	// Label is the human-readable name, including the prefix of enclosing properties.
	Label string

	// Description is an optional description taken from the property definition.
	Description string

	// Type is the index data type, possibly wrapped in list<> markers.
	Type string

	// RealType is a custom type used instead of Type when the backend supports it.
	RealType string

	// OriginalType is the datasource type the values were extracted from.
	OriginalType string

	// Boost is the field weight. Only meaningful for fulltext types.
	Boost float64

	// Indexed reports whether the field is configured for indexing.
	Indexed bool

	// EntityType is set when the field references another entity.
	EntityType string

	// Values holds the extracted scalar values in order.
	Values []any
}

// NewField creates a field with default boost and an empty value list.
func NewField(id, fieldType string) *Field {
	return &Field{
		ID:     id,
		Type:   fieldType,
		Boost:  DefaultBoost,
		Values: []any{},
	}
}

// InnerType returns the field type without list wrappers.
func (f *Field) InnerType() string {
	return ExtractInnerType(f.Type)
}

// NestingLevel returns the number of list wrappers around the field type.
func (f *Field) NestingLevel() int {
	return ListNestingLevel(f.Type)
}

// IsFulltext reports whether the inner type of the field is a fulltext type.
func (f *Field) IsFulltext() bool {
	return IsTextType(f.Type)
}

// EffectiveBoost returns the boost to apply when indexing.
// Non-fulltext fields are never boosted.
func (f *Field) EffectiveBoost() float64 {
	if !f.IsFulltext() || f.Boost == 0 {
		return DefaultBoost
	}
	return f.Boost
}

// AddValue appends a value.
func (f *Field) AddValue(v any) {
	f.Values = append(f.Values, v)
}

// SetValues replaces all values. The result is never nil.
func (f *Field) SetValues(values []any) {
	out := make([]any, len(values))
	copy(out, values)
	f.Values = out
}

// Clone returns a deep copy of the field's value list and metadata.
func (f *Field) Clone() *Field {
	c := *f
	c.SetValues(f.Values)
	return &c
}

// DatasourceID returns the datasource part of the field id, if any.
func (f *Field) DatasourceID() string {
	ds, _ := SplitFieldID(f.ID)
	return ds
}

// PropertyPath returns the property path part of the field id.
func (f *Field) PropertyPath() string {
	_, path := SplitFieldID(f.ID)
	return path
}

// SplitFieldID splits "ds|a:b" into "ds" and "a:b".
// IDs without a datasource prefix return an empty datasource.
func SplitFieldID(id string) (datasourceID, path string) {
	if i := strings.Index(id, DatasourceIDSeparator); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// CreateCombinedID joins a datasource id and a raw id.
func CreateCombinedID(datasourceID, rawID string) string {
	if datasourceID == "" {
		return rawID
	}
	return datasourceID + DatasourceIDSeparator + rawID
}

// SplitCombinedID splits a combined item id into datasource and raw id.
func SplitCombinedID(id string) (datasourceID, rawID string) {
	return SplitFieldID(id)
}

// SplitPropertyPath splits a property path on its first separator.
// The remainder is empty for direct properties.
func SplitPropertyPath(path string) (head, remainder string) {
	if i := strings.Index(path, PropertySeparator); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
