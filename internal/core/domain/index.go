package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Option keys understood by every index.
const (
	OptionCronLimit     = "cron_limit"
	OptionIndexDirectly = "index_directly"
	OptionRejectedItems = "rejected_items"

	// DefaultCronLimit is the batch size used when no cron_limit is configured.
	DefaultCronLimit = 50
)

// RejectedPolicy decides what happens to items a processor removed from a batch.
type RejectedPolicy string

const (
	// RejectedMarkIndexed reports rejected items as handled so they are not retried.
	RejectedMarkIndexed RejectedPolicy = "indexed"

	// RejectedKeepPending leaves rejected items pending in the tracker.
	RejectedKeepPending RejectedPolicy = "pending"
)

// IsValid returns true if the policy is recognised.
func (p RejectedPolicy) IsValid() bool {
	return p == RejectedMarkIndexed || p == RejectedKeepPending
}

// FieldConfig is the stored configuration of one index field.
type FieldConfig struct {
	// Type is the index type, possibly nested in list<> markers.
	Type string

	// RealType is a custom type used when the backend supports it natively.
	RealType string

	// Boost is the field weight for fulltext fields.
	Boost float64
}

// ProcessorSettings is the stored configuration of one processor on an index.
type ProcessorSettings struct {
	// Status enables the processor.
	Status bool

	// Weights overrides the default weight per stage.
	Weights map[Stage]int

	// Settings are processor-specific options.
	Settings map[string]any
}

// IndexConfig is the persisted configuration of a search index.
type IndexConfig struct {
	ID            string
	Name          string
	Description   string
	ServerID      string
	DatasourceIDs []string
	Fields        map[string]FieldConfig
	Processors    map[string]ProcessorSettings
	Enabled       bool
	ReadOnly      bool
	Options       map[string]any
}

// NewIndexConfig creates an enabled index configuration with empty maps.
func NewIndexConfig(id, name, serverID string, datasourceIDs ...string) *IndexConfig {
	return &IndexConfig{
		ID:            id,
		Name:          name,
		ServerID:      serverID,
		DatasourceIDs: datasourceIDs,
		Fields:        make(map[string]FieldConfig),
		Processors:    make(map[string]ProcessorSettings),
		Enabled:       true,
		Options:       make(map[string]any),
	}
}

// Validate checks the configuration for structural errors.
func (c *IndexConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("index id is required: %w", ErrInvalidInput)
	}
	if strings.ContainsAny(c.ID, " ./\\") {
		return fmt.Errorf("index id %q contains invalid characters: %w", c.ID, ErrInvalidInput)
	}
	if len(c.DatasourceIDs) == 0 {
		return fmt.Errorf("index %q has no datasources: %w", c.ID, ErrInvalidInput)
	}
	for id, f := range c.Fields {
		if f.Type == "" {
			return fmt.Errorf("field %q has no type: %w", id, ErrInvalidInput)
		}
	}
	if v, ok := c.Options[OptionRejectedItems]; ok {
		s, _ := v.(string)
		if !RejectedPolicy(s).IsValid() {
			return fmt.Errorf("option %s=%v: %w", OptionRejectedItems, v, ErrInvalidInput)
		}
	}
	return nil
}

// FieldIDs returns the configured field ids, sorted.
func (c *IndexConfig) FieldIDs() []string {
	ids := make([]string, 0, len(c.Fields))
	for id := range c.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessorEnabled reports whether the processor is configured and enabled.
func (c *IndexConfig) ProcessorEnabled(id string) bool {
	p, ok := c.Processors[id]
	return ok && p.Status
}

// CronLimit returns the batch size for scheduled indexing.
func (c *IndexConfig) CronLimit() int {
	if n, ok := toInt(c.Options[OptionCronLimit]); ok {
		return n
	}
	return DefaultCronLimit
}

// IndexDirectly reports whether changed items are indexed immediately.
func (c *IndexConfig) IndexDirectly() bool {
	b, _ := c.Options[OptionIndexDirectly].(bool)
	return b
}

// RejectedPolicy returns the configured policy for rejected items.
func (c *IndexConfig) RejectedPolicy() RejectedPolicy {
	if s, ok := c.Options[OptionRejectedItems].(string); ok && RejectedPolicy(s).IsValid() {
		return RejectedPolicy(s)
	}
	return RejectedMarkIndexed
}

// Clone returns a deep copy of the configuration.
func (c *IndexConfig) Clone() *IndexConfig {
	out := *c
	out.DatasourceIDs = append([]string(nil), c.DatasourceIDs...)
	out.Fields = make(map[string]FieldConfig, len(c.Fields))
	for id, f := range c.Fields {
		out.Fields[id] = f
	}
	out.Processors = make(map[string]ProcessorSettings, len(c.Processors))
	for id, p := range c.Processors {
		cp := ProcessorSettings{Status: p.Status}
		if p.Weights != nil {
			cp.Weights = make(map[Stage]int, len(p.Weights))
			for s, w := range p.Weights {
				cp.Weights[s] = w
			}
		}
		cp.Settings = cloneMap(p.Settings)
		out.Processors[id] = cp
	}
	out.Options = cloneMap(c.Options)
	return &out
}

// GetOption reads a nested option path such as "processors.html.weights.preprocess_index".
func (c *IndexConfig) GetOption(path string) (any, bool) {
	kind, rest, _ := strings.Cut(path, ".")
	switch kind {
	case "options":
		v, ok := c.Options[rest]
		return v, ok
	case "fields":
		id, attr, ok := cutLast(rest)
		if !ok {
			return nil, false
		}
		f, ok := c.Fields[id]
		if !ok {
			return nil, false
		}
		switch attr {
		case "type":
			return f.Type, true
		case "real_type":
			return f.RealType, f.RealType != ""
		case "boost":
			return f.Boost, true
		}
	case "processors":
		id, sub, _ := strings.Cut(rest, ".")
		p, ok := c.Processors[id]
		if !ok {
			return nil, false
		}
		attr, key, _ := strings.Cut(sub, ".")
		switch attr {
		case "status":
			return p.Status, true
		case "weights":
			w, ok := p.Weights[Stage(key)]
			return w, ok
		case "settings":
			if key == "" {
				return p.Settings, p.Settings != nil
			}
			v, ok := p.Settings[key]
			return v, ok
		}
	}
	return nil, false
}

// SetOption writes a nested option path. Unknown paths and mistyped values
// return ErrInvalidInput.
func (c *IndexConfig) SetOption(path string, value any) error {
	kind, rest, _ := strings.Cut(path, ".")
	switch kind {
	case "options":
		if rest == "" {
			break
		}
		if c.Options == nil {
			c.Options = make(map[string]any)
		}
		c.Options[rest] = value
		return nil
	case "fields":
		id, attr, ok := cutLast(rest)
		if !ok {
			break
		}
		if c.Fields == nil {
			c.Fields = make(map[string]FieldConfig)
		}
		f := c.Fields[id]
		switch attr {
		case "type":
			s, ok := value.(string)
			if !ok || s == "" {
				return fmt.Errorf("%s: expected type name: %w", path, ErrInvalidInput)
			}
			f.Type = s
		case "real_type":
			s, _ := value.(string)
			f.RealType = s
		case "boost":
			b, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("%s: expected number: %w", path, ErrInvalidInput)
			}
			f.Boost = b
		default:
			return fmt.Errorf("unknown option path %q: %w", path, ErrInvalidInput)
		}
		c.Fields[id] = f
		return nil
	case "processors":
		id, sub, _ := strings.Cut(rest, ".")
		if id == "" {
			break
		}
		if c.Processors == nil {
			c.Processors = make(map[string]ProcessorSettings)
		}
		p := c.Processors[id]
		attr, key, _ := strings.Cut(sub, ".")
		switch attr {
		case "status":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%s: expected bool: %w", path, ErrInvalidInput)
			}
			p.Status = b
		case "weights":
			if !Stage(key).IsValid() {
				return fmt.Errorf("%s: unknown stage %q: %w", path, key, ErrInvalidInput)
			}
			w, ok := toInt(value)
			if !ok {
				return fmt.Errorf("%s: expected integer: %w", path, ErrInvalidInput)
			}
			if p.Weights == nil {
				p.Weights = make(map[Stage]int)
			}
			p.Weights[Stage(key)] = w
		case "settings":
			if key == "" {
				m, ok := value.(map[string]any)
				if !ok {
					return fmt.Errorf("%s: expected map: %w", path, ErrInvalidInput)
				}
				p.Settings = cloneMap(m)
				break
			}
			if p.Settings == nil {
				p.Settings = make(map[string]any)
			}
			p.Settings[key] = value
		default:
			return fmt.Errorf("unknown option path %q: %w", path, ErrInvalidInput)
		}
		c.Processors[id] = p
		return nil
	}
	return fmt.Errorf("unknown option path %q: %w", path, ErrInvalidInput)
}

func cutLast(s string) (before, after string, ok bool) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneMap(nested)
		}
		out[k] = v
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
