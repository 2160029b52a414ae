package file

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// schemaNode is the YAML form of a domain.DataDefinition.
type schemaNode struct {
	Name         string        `yaml:"name"`
	Type         string        `yaml:"type"`
	Label        string        `yaml:"label"`
	Description  string        `yaml:"description"`
	MainProperty string        `yaml:"main_property"`
	OptionsList  bool          `yaml:"options_list"`
	EntityType   string        `yaml:"entity_type"`
	IDType       string        `yaml:"id_type"`
	Properties   []*schemaNode `yaml:"properties"`
}

// LoadSchema reads a property definition tree from a YAML file.
func LoadSchema(path string) (*domain.DataDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a YAML property definition tree.
func ParseSchema(data []byte) (*domain.DataDefinition, error) {
	var root schemaNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(root.Properties) == 0 {
		return nil, fmt.Errorf("%w: schema defines no properties", domain.ErrInvalidInput)
	}
	return root.definition()
}

func (n *schemaNode) definition() (*domain.DataDefinition, error) {
	def := &domain.DataDefinition{
		Name:         n.Name,
		Type:         n.Type,
		Label:        n.Label,
		Description:  n.Description,
		MainProperty: n.MainProperty,
		OptionsList:  n.OptionsList,
		EntityType:   n.EntityType,
		IDType:       n.IDType,
	}
	if def.Label == "" {
		def.Label = n.Name
	}
	seen := make(map[string]bool, len(n.Properties))
	for _, p := range n.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: property of %q has no name", domain.ErrInvalidInput, n.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate property %q", domain.ErrInvalidInput, p.Name)
		}
		seen[p.Name] = true
		if p.Type == "" {
			p.Type = domain.TypeString
		}
		child, err := p.definition()
		if err != nil {
			return nil, err
		}
		def.Properties = append(def.Properties, child)
	}
	return def, nil
}
