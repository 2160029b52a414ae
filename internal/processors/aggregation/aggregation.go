// Package aggregation provides a processor that combines the values of
// several fields into one synthetic field.
package aggregation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "aggregation"

// Reducer kinds.
const (
	Fulltext = "fulltext"
	Sum      = "sum"
	Count    = "count"
	Max      = "max"
	Min      = "min"
	First    = "first"
)

var typeOf = map[string]string{
	Fulltext: domain.TypeText,
	Sum:      domain.TypeDecimal,
	Count:    domain.TypeInteger,
	Max:      domain.TypeDecimal,
	Min:      domain.TypeDecimal,
	First:    domain.TypeString,
}

var labels = map[string]string{
	Fulltext: "Fulltext",
	Sum:      "Sum",
	Count:    "Count",
	Max:      "Maximum",
	Min:      "Minimum",
	First:    "First",
}

// Aggregate is one configured aggregated field.
type Aggregate struct {
	ID     string
	Label  string
	Type   string
	Fields []string
}

// IndexType returns the index data type of the aggregated field.
func (a Aggregate) IndexType() string {
	return typeOf[a.Type]
}

// Processor adds aggregated fields to items.
type Processor struct {
	fieldproc.Plugin

	aggregates []Aggregate
	fields     map[string]domain.FieldConfig
	extractor  driven.FieldExtractor
}

// New creates an aggregation processor from its settings:
//
//	fields = { <aggId> = { label = "...", type = "fulltext", fields = ["a", "b"] } }
func New(ctx driven.ProcessorContext, settings map[string]any) (*Processor, error) {
	p := &Processor{
		Plugin: fieldproc.NewPlugin(ID, "Aggregated fields",
			"Add aggregated fields, combining the values of several other fields.",
			map[domain.Stage]int{domain.StagePreprocessIndex: -10}),
		fields:    ctx.Fields,
		extractor: ctx.Extractor,
	}

	raw, _ := settings["fields"].(map[string]any)
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cfg, ok := raw[id].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: aggregated field %q", domain.ErrInvalidInput, id)
		}
		agg := Aggregate{
			ID:     id,
			Label:  fieldproc.String(cfg, "label", id),
			Type:   fieldproc.String(cfg, "type", Fulltext),
			Fields: fieldproc.StringList(cfg, "fields"),
		}
		if _, ok := typeOf[agg.Type]; !ok {
			return nil, fmt.Errorf("%w: aggregation type %q", domain.ErrInvalidInput, agg.Type)
		}
		if len(agg.Fields) == 0 {
			return nil, fmt.Errorf("%w: aggregated field %q has no source fields", domain.ErrInvalidInput, id)
		}
		p.aggregates = append(p.aggregates, agg)
	}
	return p, nil
}

// Aggregates returns the configured aggregated fields.
func (p *Processor) Aggregates() []Aggregate {
	return p.aggregates
}

// PreprocessIndexItems adds the aggregates that are configured as index
// fields to every item. Aggregates without a value are left off the item,
// except count which is always set.
func (p *Processor) PreprocessIndexItems(items map[string]*domain.Item) {
	for _, item := range items {
		for _, agg := range p.aggregates {
			if _, ok := p.fields[agg.ID]; !ok {
				continue
			}
			v, ok := Reduce(agg.Type, p.sourceValues(item, agg.Fields))
			if !ok {
				continue
			}
			f := domain.NewField(agg.ID, agg.IndexType())
			f.Label = agg.Label
			f.Indexed = true
			f.OriginalType = f.Type
			f.AddValue(v)
			item.SetField(f)
		}
	}
}

// sourceValues collects the flattened values of the source fields.
// Fields not yet present on the item are extracted from its data.
func (p *Processor) sourceValues(item *domain.Item, fieldIDs []string) []any {
	var values []any
	missing := make(map[string]*domain.Field)
	for _, id := range fieldIDs {
		if _, ok := item.GetField(id); !ok {
			missing[id] = domain.NewField(id, domain.TypeString)
		}
	}
	if len(missing) > 0 && p.extractor != nil && item.Data != nil {
		byPath := make(map[string]*domain.Field, len(missing))
		for id, f := range missing {
			ds, path := domain.SplitFieldID(id)
			if ds != "" && ds != item.DatasourceID {
				continue
			}
			byPath[path] = f
		}
		p.extractor.ExtractFields(item.Data, byPath)
	}
	for _, id := range fieldIDs {
		f, ok := item.GetField(id)
		if !ok {
			f = missing[id]
		}
		if f == nil {
			continue
		}
		values = append(values, flatten(f.Values)...)
	}
	return values
}

func flatten(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if nested, ok := v.([]any); ok {
			out = append(out, flatten(nested)...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Reduce folds values left to right with the reducer of the given kind.
// The second return is false when the aggregated field has no value.
// Count always has a value, zero for no values.
func Reduce(kind string, values []any) (any, bool) {
	if kind == Count {
		return len(values), true
	}
	if len(values) == 0 {
		return nil, false
	}
	switch kind {
	case Fulltext:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprint(v)
		}
		return strings.Join(parts, "\n\n"), true
	case First:
		return values[0], true
	case Sum:
		var sum float64
		for _, v := range values {
			sum += number(v)
		}
		return sum, true
	case Max:
		m := math.Inf(-1)
		for _, v := range values {
			m = math.Max(m, number(v))
		}
		return m, true
	case Min:
		m := math.Inf(1)
		for _, v := range values {
			m = math.Min(m, number(v))
		}
		return m, true
	}
	return nil, false
}

// number converts a scalar value to float64. Unparseable values count as zero.
func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// AlterPropertyDefinitions contributes the aggregated fields as index-level
// properties so they can be discovered and configured.
func (p *Processor) AlterPropertyDefinitions(props *domain.DataDefinition, datasourceID string) {
	if datasourceID != "" {
		return
	}
	for _, agg := range p.aggregates {
		if _, exists := props.Property(agg.ID); exists {
			continue
		}
		props.Properties = append(props.Properties, &domain.DataDefinition{
			Name:        agg.ID,
			Type:        agg.IndexType(),
			Label:       agg.Label,
			Description: describe(agg),
		})
	}
}

func describe(agg Aggregate) string {
	return fmt.Sprintf("A %s aggregation of the following fields: %s.",
		strings.ToLower(labels[agg.Type]), strings.Join(agg.Fields, ", "))
}
