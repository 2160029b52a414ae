package extraction

import "github.com/custodia-labs/searchapi/internal/core/domain"

// nodeSchema returns an article-like schema with a self-referential author.
func nodeSchema() *domain.DataDefinition {
	parent := &domain.DataDefinition{
		Name: "parent", Type: "entity:user", Label: "Parent", EntityType: "user", MainProperty: "uid",
	}
	user := []*domain.DataDefinition{
		{Name: "uid", Type: domain.TypeInteger, Label: "User ID"},
		{Name: "name", Type: domain.TypeString, Label: "Name"},
		parent,
	}
	parent.Properties = user

	return &domain.DataDefinition{
		Name: "node",
		Type: "entity:node",
		Properties: []*domain.DataDefinition{
			{Name: "nid", Type: domain.TypeInteger, Label: "Node ID"},
			{Name: "title", Type: domain.TypeText, Label: "Title", Description: "The title"},
			{Name: "type", Type: "token", Label: "Content type"},
			{Name: "format", Type: domain.TypeText, Label: "Format", OptionsList: true},
			{Name: "created", Type: "created", Label: "Created"},
			{Name: "body", Type: "text_formatted", Label: "Body", MainProperty: "value", Properties: []*domain.DataDefinition{
				{Name: "value", Type: domain.TypeText, Label: "Text"},
				{Name: "summary", Type: domain.TypeText, Label: "Summary"},
			}},
			{Name: "author", Type: "entity:user", Label: "Author", EntityType: "user", MainProperty: "uid", Properties: user},
			{Name: "field_tags", Type: "list<entity:taxonomy_term>", Label: "Tags", EntityType: "taxonomy_term", IDType: domain.TypeInteger, MainProperty: "tid", Properties: []*domain.DataDefinition{
				{Name: "tid", Type: domain.TypeInteger, Label: "Term ID"},
				{Name: "name", Type: domain.TypeString, Label: "Name"},
			}},
			{Name: "editor", Type: "entity:user", Label: "Author", EntityType: "user", Properties: user},
		},
	}
}

func fieldsFor(types map[string]string) map[string]*domain.Field {
	out := make(map[string]*domain.Field, len(types))
	for path, t := range types {
		out[path] = domain.NewField(path, t)
	}
	return out
}
