package domain

import (
	"sort"
	"strings"
)

// Default data types recognised by every index.
const (
	TypeText          = "text"
	TypeTokenizedText = "tokenized_text"
	TypeString        = "string"
	TypeInteger       = "integer"
	TypeDecimal       = "decimal"
	TypeDate          = "date"
	TypeBoolean       = "boolean"
)

const (
	listPrefix = "list<"
	listSuffix = ">"
)

// ExtractInnerType strips all list<> wrappers from a type.
// ExtractInnerType("list<list<text>>") returns "text".
func ExtractInnerType(t string) string {
	for strings.HasPrefix(t, listPrefix) && strings.HasSuffix(t, listSuffix) {
		t = t[len(listPrefix) : len(t)-len(listSuffix)]
	}
	return t
}

// ListNestingLevel returns the number of list<> wrappers around a type.
func ListNestingLevel(t string) int {
	level := 0
	for strings.HasPrefix(t, listPrefix) && strings.HasSuffix(t, listSuffix) {
		t = t[len(listPrefix) : len(t)-len(listSuffix)]
		level++
	}
	return level
}

// ListOf wraps t in n list<> markers.
func ListOf(t string, n int) string {
	if n <= 0 {
		return t
	}
	return strings.Repeat(listPrefix, n) + t + strings.Repeat(listSuffix, n)
}

// NestType wraps inner with the same nesting as template.
// NestType("string", "list<token>") returns "list<string>".
func NestType(inner, template string) string {
	return ListOf(ExtractInnerType(inner), ListNestingLevel(template))
}

// IsTextType reports whether the inner type of t is one of allowed.
// With no allowed types given, only fulltext types match.
func IsTextType(t string, allowed ...string) bool {
	if len(allowed) == 0 {
		allowed = []string{TypeText, TypeTokenizedText}
	}
	inner := ExtractInnerType(t)
	for _, a := range allowed {
		if inner == a {
			return true
		}
	}
	return false
}

// IsSortableType reports whether fields of the type can be sorted on.
func IsSortableType(t string) bool {
	return ListNestingLevel(t) == 0 && !IsTextType(t)
}

// DataTypeInfo describes a custom data type a backend may support natively.
type DataTypeInfo struct {
	// ID is the machine name of the type.
	ID string

	// Name is the human-readable name.
	Name string

	// Fallback is the default type used when the backend lacks native support.
	Fallback string

	// Convert transforms a single extracted value into the custom type.
	// It returns false when the value cannot be represented.
	Convert func(value any, originalType string) (any, bool)
}

// DataTypeRegistry is an immutable set of known data types.
// It is built once at startup and injected where type information is needed.
type DataTypeRegistry struct {
	defaults map[string]string
	custom   map[string]DataTypeInfo
}

// NewDataTypeRegistry creates a registry of the default types plus the given custom types.
// Custom types without a known fallback fall back to "string".
func NewDataTypeRegistry(custom ...DataTypeInfo) *DataTypeRegistry {
	r := &DataTypeRegistry{
		defaults: map[string]string{
			TypeText:          "Fulltext",
			TypeTokenizedText: "Tokenized fulltext",
			TypeString:        "String",
			TypeInteger:       "Integer",
			TypeDecimal:       "Decimal",
			TypeDate:          "Date",
			TypeBoolean:       "Boolean",
		},
		custom: make(map[string]DataTypeInfo, len(custom)),
	}
	for _, info := range custom {
		if _, ok := r.defaults[info.Fallback]; !ok {
			info.Fallback = TypeString
		}
		if info.Name == "" {
			info.Name = info.ID
		}
		r.custom[info.ID] = info
	}
	return r
}

// IsDefault reports whether t (inner type) is one of the default types.
func (r *DataTypeRegistry) IsDefault(t string) bool {
	_, ok := r.defaults[ExtractInnerType(t)]
	return ok
}

// Known reports whether t (inner type) is a default or custom type.
func (r *DataTypeRegistry) Known(t string) bool {
	inner := ExtractInnerType(t)
	if _, ok := r.defaults[inner]; ok {
		return true
	}
	_, ok := r.custom[inner]
	return ok
}

// Custom returns the definition of a custom type.
func (r *DataTypeRegistry) Custom(t string) (DataTypeInfo, bool) {
	info, ok := r.custom[ExtractInnerType(t)]
	return info, ok
}

// Fallback returns the default type to use for t, keeping its nesting.
func (r *DataTypeRegistry) Fallback(t string) string {
	if info, ok := r.Custom(t); ok {
		return NestType(info.Fallback, t)
	}
	return t
}

// Types returns all known type ids mapped to display names.
func (r *DataTypeRegistry) Types() map[string]string {
	out := make(map[string]string, len(r.defaults)+len(r.custom))
	for id, name := range r.defaults {
		out[id] = name
	}
	for id, info := range r.custom {
		out[id] = info.Name
	}
	return out
}

// TypeIDs returns all known type ids, sorted.
func (r *DataTypeRegistry) TypeIDs() []string {
	types := r.Types()
	ids := make([]string, 0, len(types))
	for id := range types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sourceTypeMapping maps datasource property types onto index types.
var sourceTypeMapping = map[string]string{
	"comment":           TypeText,
	"list_text":         TypeText,
	"text":              TypeText,
	"text_long":         TypeText,
	"text_with_summary": TypeText,
	"path":              TypeString,
	"uri":               TypeString,
	"email":             TypeString,
	"language":          TypeString,
	"string":            TypeString,
	"string_long":       TypeString,
	"token":             TypeString,
	"uuid":              TypeString,
	"datetime":          TypeDate,
	"date":              TypeDate,
	"changed":           TypeDate,
	"created":           TypeDate,
	"timestamp":         TypeDate,
	"list_boolean":      TypeBoolean,
	"boolean":           TypeBoolean,
	"list_float":        TypeDecimal,
	"float":             TypeDecimal,
	"decimal":           TypeDecimal,
	"list_integer":      TypeInteger,
	"integer":           TypeInteger,
}

// MapSourceType maps a datasource property type to the default index type.
// The second return is false for types with no sensible default.
func MapSourceType(sourceType string) (string, bool) {
	t, ok := sourceTypeMapping[sourceType]
	return t, ok
}
