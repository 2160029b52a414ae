// Package datasource builds the datasources listed in the application
// configuration.
//
// config.toml declares them as an array of tables:
//
//	[[datasources]]
//	id = "node"
//	type = "file"
//	dir = "/srv/content/nodes"
//	entity_type = "node"
//
//	[[datasources]]
//	id = "fixtures"
//	type = "memory"
//	schema = "/srv/content/fixtures.schema.yaml"
//	seed = "/srv/content/fixtures.yaml"
package datasource

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/datasource/file"
	"github.com/custodia-labs/searchapi/internal/adapters/driven/datasource/memory"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// ConfigKey is the config.toml key holding the datasource list.
const ConfigKey = "datasources"

// Datasource types.
const (
	TypeFile   = "file"
	TypeMemory = "memory"
)

// Config describes one configured datasource.
type Config struct {
	ID         string
	Type       string
	EntityType string

	// Dir holds the item files of a file datasource.
	Dir string

	// Schema is the property schema. Optional for file datasources.
	Schema string

	// Seed is a YAML file mapping raw ids to property maps, loaded into a
	// memory datasource at startup.
	Seed string
}

// ParseConfigs converts the raw config value into datasource configs.
// A missing value yields no configs.
func ParseConfigs(raw any) ([]Config, error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list of tables", domain.ErrInvalidInput, ConfigKey)
	}

	seen := make(map[string]bool, len(entries))
	configs := make([]Config, 0, len(entries))
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a table", domain.ErrInvalidInput, ConfigKey, i)
		}
		cfg := Config{
			ID:         str(m, "id"),
			Type:       str(m, "type"),
			EntityType: str(m, "entity_type"),
			Dir:        str(m, "dir"),
			Schema:     str(m, "schema"),
			Seed:       str(m, "seed"),
		}
		if cfg.Type == "" {
			cfg.Type = TypeFile
		}
		if cfg.ID == "" {
			return nil, fmt.Errorf("%w: %s[%d] has no id", domain.ErrInvalidInput, ConfigKey, i)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("%w: datasource %q", domain.ErrAlreadyExists, cfg.ID)
		}
		seen[cfg.ID] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Open builds the datasource described by cfg.
func Open(cfg Config) (driven.Datasource, error) {
	switch cfg.Type {
	case TypeFile:
		return file.New(file.Config{
			ID:         cfg.ID,
			EntityType: cfg.EntityType,
			Dir:        cfg.Dir,
			Schema:     cfg.Schema,
		})
	case TypeMemory:
		return openMemory(cfg)
	default:
		return nil, fmt.Errorf("%w: datasource %q has type %q", domain.ErrUnknownDatasource, cfg.ID, cfg.Type)
	}
}

// OpenAll parses raw and opens every datasource.
func OpenAll(raw any) ([]driven.Datasource, error) {
	configs, err := ParseConfigs(raw)
	if err != nil {
		return nil, err
	}
	out := make([]driven.Datasource, 0, len(configs))
	for _, cfg := range configs {
		ds, err := Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("datasource %s: %w", cfg.ID, err)
		}
		out = append(out, ds)
	}
	return out, nil
}

func openMemory(cfg Config) (*memory.Datasource, error) {
	if cfg.Schema == "" {
		return nil, fmt.Errorf("%w: memory datasource %q needs a schema", domain.ErrInvalidInput, cfg.ID)
	}
	def, err := file.LoadSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	ds := memory.New(cfg.ID, cfg.EntityType, def)
	if cfg.Seed == "" {
		return ds, nil
	}

	data, err := os.ReadFile(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed map[string]map[string]any
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", cfg.Seed, err)
	}
	for id, values := range seed {
		ds.Put(id, record(values))
	}
	return ds, nil
}

// record reads the language and publication status the way file items do.
func record(values map[string]any) memory.Record {
	r := memory.Record{Values: values}
	if lang, ok := values[file.LanguageKey].(string); ok {
		r.Language = lang
	}
	if status, ok := values[file.StatusKey].(bool); ok {
		r.Published = &status
	}
	return r
}
