package extraction

import (
	"strings"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

const nameSeparator = " » "

// DiscoverOptions controls field discovery.
type DiscoverOptions struct {
	// OnlyIndexed limits the result to configured fields.
	OnlyIndexed bool

	// Additional lists extra property prefixes to descend into, e.g. "author".
	// Ignored when OnlyIndexed is set.
	Additional []string

	// DataTypes resolves custom data types. Nil means defaults only.
	DataTypes *domain.DataTypeRegistry
}

// Discovered is the outcome of a discovery walk.
type Discovered struct {
	// Fields maps property paths to field definitions. Field values are empty.
	Fields map[string]*domain.Field

	// Additional maps the paths of complex properties that were not descended
	// into to their display names.
	Additional map[string]string
}

// node is one entry of the discovery worklist.
type node struct {
	def    *domain.DataDefinition
	prefix string
	name   string
	level  int
}

// Discover walks the property definitions breadth first and reports every
// available field. A complex property is only descended into when its path
// is a prefix of a configured field or listed in opts.Additional; others are
// reported as additional fields. Self-referential schemas therefore terminate.
func Discover(root *domain.DataDefinition, configured map[string]domain.FieldConfig, opts DiscoverOptions) Discovered {
	if opts.DataTypes == nil {
		opts.DataTypes = domain.NewDataTypeRegistry()
	}
	out := Discovered{
		Fields:     make(map[string]*domain.Field),
		Additional: make(map[string]string),
	}
	if root == nil {
		return out
	}

	wanted := wantedPrefixes(configured, opts)
	visited := map[string]bool{"": true}
	used := make(map[string]string)
	queue := []node{{def: root}}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, prop := range n.def.Properties {
			key := n.prefix + prop.Name
			name := n.name + labelOf(prop)
			declared := prop.Type
			inner := domain.ExtractInnerType(declared)
			if inner == "token" || (inner == domain.TypeText && prop.OptionsList) {
				inner = domain.TypeString
				declared = domain.NestType(domain.TypeString, declared)
			}
			fullType := domain.ListOf(declared, n.level)

			indexType, known := resolveType(inner, prop, opts.DataTypes)
			cfg, isConfigured := configured[key]
			if (known || prop.EntityType != "") && (!opts.OnlyIndexed || isConfigured) {
				out.Fields[key] = buildField(key, name, prop, indexType, fullType, cfg, isConfigured)
			}

			if !prop.IsComplex() {
				continue
			}
			childPrefix := key + domain.PropertySeparator
			if wanted[key] {
				if visited[childPrefix] {
					continue
				}
				visited[childPrefix] = true
				queue = append(queue, node{
					def:    prop.ElementDefinition(),
					prefix: childPrefix,
					name:   name + nameSeparator,
					level:  domain.ListNestingLevel(fullType),
				})
				continue
			}
			if prev, seen := used[name]; seen {
				if prev != "" {
					out.Additional[prev] += " [" + prev + "]"
					used[name] = ""
				}
				name += " [" + key + "]"
			}
			out.Additional[key] = name
			used[name] = key
		}
	}
	return out
}

// wantedPrefixes collects every proper path prefix of the configured fields,
// plus the additional prefixes when not only listing indexed fields.
func wantedPrefixes(configured map[string]domain.FieldConfig, opts DiscoverOptions) map[string]bool {
	wanted := make(map[string]bool)
	if !opts.OnlyIndexed {
		for _, p := range opts.Additional {
			wanted[p] = true
		}
	}
	for key := range configured {
		for i := len(key) - 1; i > 0; i-- {
			if key[i] != domain.PropertySeparator[0] {
				continue
			}
			prefix := key[:i]
			if wanted[prefix] {
				break
			}
			wanted[prefix] = true
		}
	}
	return wanted
}

// resolveType maps a declared inner type to an index type. The second
// return is false for types that cannot be indexed directly.
func resolveType(inner string, prop *domain.DataDefinition, types *domain.DataTypeRegistry) (string, bool) {
	if prop.EntityType != "" {
		if prop.IDType == domain.TypeString {
			return domain.TypeString, false
		}
		return domain.TypeInteger, false
	}
	if types.Known(inner) {
		return inner, true
	}
	if mapped, ok := domain.MapSourceType(inner); ok {
		return mapped, true
	}
	return "", false
}

func buildField(key, name string, prop *domain.DataDefinition, indexType, fullType string, cfg domain.FieldConfig, configured bool) *domain.Field {
	f := domain.NewField(key, domain.NestType(indexType, fullType))
	f.Label = name
	f.Description = prop.Description
	if configured {
		f.Indexed = true
		if cfg.Boost != 0 {
			f.Boost = cfg.Boost
		}
		if prop.EntityType == "" {
			f.Type = domain.NestType(cfg.Type, fullType)
			if cfg.RealType != "" {
				f.RealType = domain.NestType(cfg.RealType, fullType)
			}
		}
	}
	if prop.EntityType != "" {
		f.Type = domain.NestType(indexType, fullType)
		f.EntityType = prop.EntityType
	}
	return f
}

func labelOf(def *domain.DataDefinition) string {
	if def.Label != "" {
		return def.Label
	}
	return strings.ReplaceAll(def.Name, "_", " ")
}
