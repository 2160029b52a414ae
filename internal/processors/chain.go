package processors

import (
	"errors"
	"sort"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/logger"
)

type entry struct {
	proc    driven.Processor
	weights map[domain.Stage]int
}

func (e entry) weight(stage domain.Stage) int {
	if w, ok := e.weights[stage]; ok {
		return w
	}
	return e.proc.DefaultWeight(stage)
}

// Chain holds the enabled processor instances of one index and runs them
// stage by stage. A chain is immutable once built; configuration changes
// require a new chain.
type Chain struct {
	entries []entry
	stages  map[domain.Stage][]driven.Processor
	post    []driven.Processor
}

// NewChain builds every enabled processor in settings. Unknown processors,
// failing builders, and processors that do not support the index are logged
// and skipped.
func NewChain(reg *Registry, ctx driven.ProcessorContext, settings map[string]domain.ProcessorSettings) *Chain {
	log := logger.With("index " + ctx.Index.ID)

	ids := make([]string, 0, len(settings))
	for id := range settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	c := &Chain{stages: make(map[domain.Stage][]driven.Processor)}
	for _, id := range ids {
		s := settings[id]
		if !s.Status {
			continue
		}
		proc, err := reg.Build(id, ctx, s.Settings)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownProcessor) {
				log.Warn("skipping unknown processor %q", id)
			} else {
				log.Warn("skipping processor %q: %v", id, err)
			}
			continue
		}
		if sup, ok := proc.(driven.IndexSupporter); ok && !sup.SupportsIndex(ctx.Index) {
			log.Warn("processor %q does not support this index", id)
			continue
		}
		c.entries = append(c.entries, entry{proc: proc, weights: s.Weights})
	}

	for _, stage := range domain.AllStages() {
		c.stages[stage] = c.order(stage, stage)
	}
	c.post = c.order(domain.StagePostprocessQuery, domain.StagePreprocessQuery)
	for i, j := 0, len(c.post)-1; i < j; i, j = i+1, j-1 {
		c.post[i], c.post[j] = c.post[j], c.post[i]
	}
	return c
}

// order returns the processors supporting stage, sorted by their weight
// in sortStage and then by id.
func (c *Chain) order(stage, sortStage domain.Stage) []driven.Processor {
	var selected []entry
	for _, e := range c.entries {
		if e.proc.SupportsStage(stage) {
			selected = append(selected, e)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		wi, wj := selected[i].weight(sortStage), selected[j].weight(sortStage)
		if wi != wj {
			return wi < wj
		}
		return selected[i].proc.ID() < selected[j].proc.ID()
	})
	out := make([]driven.Processor, len(selected))
	for i, e := range selected {
		out[i] = e.proc
	}
	return out
}

// ForStage returns the processors of a stage in execution order.
// Post-processing runs in the reverse of the query preprocessing order.
func (c *Chain) ForStage(stage domain.Stage) []driven.Processor {
	if stage == domain.StagePostprocessQuery {
		return append([]driven.Processor(nil), c.post...)
	}
	return append([]driven.Processor(nil), c.stages[stage]...)
}

// All returns every enabled processor, ordered by index preprocessing
// weight and then id.
func (c *Chain) All() []driven.Processor {
	sorted := append([]entry(nil), c.entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, wj := sorted[i].weight(domain.StagePreprocessIndex), sorted[j].weight(domain.StagePreprocessIndex)
		if wi != wj {
			return wi < wj
		}
		return sorted[i].proc.ID() < sorted[j].proc.ID()
	})
	out := make([]driven.Processor, len(sorted))
	for i, e := range sorted {
		out[i] = e.proc
	}
	return out
}

// Get returns an enabled processor by id.
func (c *Chain) Get(id string) (driven.Processor, bool) {
	for _, e := range c.entries {
		if e.proc.ID() == id {
			return e.proc, true
		}
	}
	return nil, false
}

// Len returns the number of enabled processors.
func (c *Chain) Len() int {
	return len(c.entries)
}

// PreprocessIndexItems annotates item languages and then runs the index
// preprocessing stage. Processors may delete items from the map.
func (c *Chain) PreprocessIndexItems(items map[string]*domain.Item) {
	AnnotateLanguage(items)
	for _, p := range c.stages[domain.StagePreprocessIndex] {
		if len(items) == 0 {
			return
		}
		p.PreprocessIndexItems(items)
	}
}

// PreprocessSearchQuery runs the query preprocessing stage.
func (c *Chain) PreprocessSearchQuery(q *domain.Query) {
	for _, p := range c.stages[domain.StagePreprocessQuery] {
		p.PreprocessSearchQuery(q)
	}
}

// PostprocessSearchResults runs the post-processing stage in reverse
// query preprocessing order.
func (c *Chain) PostprocessSearchResults(rs *domain.ResultSet, q *domain.Query) {
	for _, p := range c.post {
		p.PostprocessSearchResults(rs, q)
	}
}

// AlterPropertyDefinitions lets every enabled processor contribute properties.
func (c *Chain) AlterPropertyDefinitions(props *domain.DataDefinition, datasourceID string) {
	for _, p := range c.All() {
		p.AlterPropertyDefinitions(props, datasourceID)
	}
}

// AnnotateLanguage sets the language field of every item.
func AnnotateLanguage(items map[string]*domain.Item) {
	for _, item := range items {
		f := domain.NewField(domain.LanguageFieldID, domain.TypeString)
		f.Label = "Item language"
		f.Indexed = true
		f.OriginalType = "token"
		f.AddValue(item.LanguageOrDefault())
		item.SetField(f)
	}
}

// LanguageDefinition is the property definition of the language field.
func LanguageDefinition() *domain.DataDefinition {
	return &domain.DataDefinition{
		Name:        domain.LanguageFieldID,
		Type:        "token",
		Label:       "Item language",
		Description: "A field added by the search framework to let components determine an item's language. Is always indexed.",
		OptionsList: true,
	}
}
