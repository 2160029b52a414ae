package domain

// LanguageNone is the language code of items that carry no language.
const LanguageNone = "und"

// LanguageFieldID is the synthetic field every item receives before processing.
const LanguageFieldID = "search_api_language"

// Item is a single content item on its way into an index.
type Item struct {
	// ID is the combined id "datasourceId|rawId".
	ID string

	// DatasourceID identifies the datasource the item was loaded from.
	DatasourceID string

	// RawID is the id of the item inside its datasource.
	RawID string

	// Language is the item's language code. Empty means LanguageNone.
	Language string

	// Object is the original object loaded by the datasource.
	Object any

	// Data is the typed property tree of the item.
	Data ComplexData

	// Fields holds the extracted field values, keyed by field id.
	Fields map[string]*Field
}

// NewItem creates an item with an empty field map.
func NewItem(datasourceID, rawID string, data ComplexData) *Item {
	return &Item{
		ID:           CreateCombinedID(datasourceID, rawID),
		DatasourceID: datasourceID,
		RawID:        rawID,
		Data:         data,
		Fields:       make(map[string]*Field),
	}
}

// GetField returns a field by id.
func (i *Item) GetField(id string) (*Field, bool) {
	f, ok := i.Fields[id]
	return f, ok
}

// SetField adds or replaces a field.
func (i *Item) SetField(f *Field) {
	if i.Fields == nil {
		i.Fields = make(map[string]*Field)
	}
	i.Fields[f.ID] = f
}

// LanguageOrDefault returns the item language, or LanguageNone.
func (i *Item) LanguageOrDefault() string {
	if i.Language == "" {
		return LanguageNone
	}
	return i.Language
}

// Publishable is implemented by original objects with a publication status.
type Publishable interface {
	IsPublished() bool
}

// DataDefinition describes a node in an item's property tree.
// List-valued properties use a list<> wrapped Type. Complex properties
// list their children in Properties, in display order.
type DataDefinition struct {
	// Name is the property name within its parent.
	Name string

	// Type is the datasource data type, e.g. "text", "list<string>", "entity:user".
	Type string

	// Label is the human-readable name.
	Label string

	// Description is an optional longer description.
	Description string

	// MainProperty names the child holding the scalar value of a complex property.
	MainProperty string

	// OptionsList marks text properties restricted to a fixed set of options.
	OptionsList bool

	// EntityType is set for references to other entities.
	EntityType string

	// IDType is the index type of a referenced entity's id ("integer" or "string").
	IDType string

	// Properties are the children of a complex property.
	Properties []*DataDefinition
}

// IsList reports whether the definition is list-valued.
func (d *DataDefinition) IsList() bool {
	return ListNestingLevel(d.Type) > 0
}

// IsComplex reports whether the definition has child properties or is an entity reference.
func (d *DataDefinition) IsComplex() bool {
	return len(d.Properties) > 0 || d.EntityType != ""
}

// Property returns a child definition by name.
func (d *DataDefinition) Property(name string) (*DataDefinition, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// ElementDefinition returns the definition of one element of a list definition.
// Non-list definitions return themselves.
func (d *DataDefinition) ElementDefinition() *DataDefinition {
	level := ListNestingLevel(d.Type)
	if level == 0 {
		return d
	}
	elem := *d
	elem.Type = ListOf(ExtractInnerType(d.Type), level-1)
	return &elem
}

// TypedData is a node of an item's property tree.
type TypedData interface {
	// Definition returns the node's data definition.
	Definition() *DataDefinition

	// Value returns the native representation of the node.
	Value() any
}

// ComplexData is a node with named child properties.
type ComplexData interface {
	TypedData

	// Get returns a child property. The second return is false when the
	// property is unknown or carries no data.
	Get(name string) (TypedData, bool)

	// IsEmpty reports whether the node carries no data at all.
	IsEmpty() bool
}

// ListData is a multi-valued node.
type ListData interface {
	TypedData

	// Elements returns the list elements in order.
	Elements() []TypedData
}
