// Package stopwords provides a processor that removes common words from
// fulltext values and search keys.
package stopwords

import (
	"strings"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "stopwords"

// DefaultStopwords is used when no "stopwords" setting is given.
var DefaultStopwords = []string{"but", "did", "the", "this", "that", "those", "etc"}

// Processor drops stopwords. Matching is case-insensitive.
type Processor struct {
	*fieldproc.Base

	words   map[string]bool
	ignored []string
}

// New creates a stopwords processor. Settings:
//
//	stopwords  list or whitespace/comma separated string of words
//	fields     fields to process (default: all fulltext fields)
func New(ctx driven.ProcessorContext, settings map[string]any) (*Processor, error) {
	list := DefaultStopwords
	if _, ok := settings["stopwords"]; ok {
		list = nil
		for _, w := range fieldproc.StringList(settings, "stopwords") {
			list = append(list, strings.Fields(w)...)
		}
	}

	p := &Processor{words: make(map[string]bool, len(list))}
	for _, w := range list {
		p.words[strings.ToLower(w)] = true
	}
	p.Base = fieldproc.NewBase(
		fieldproc.NewPlugin(ID, "Stopwords",
			"Removes common words that carry no meaning for searches.",
			map[domain.Stage]int{
				domain.StagePreprocessIndex:  10,
				domain.StagePreprocessQuery:  10,
				domain.StagePostprocessQuery: 0,
			}),
		settings, ctx.Fields, p.strip)
	return p, nil
}

// IsStopword reports whether word is configured as stopword.
func (p *Processor) IsStopword(word string) bool {
	return p.words[strings.ToLower(word)]
}

func (p *Processor) strip(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	out, _ := p.filter(s)
	return out
}

// filter removes stopwords from s and returns the removed words.
func (p *Processor) filter(s string) (string, []string) {
	words := strings.Fields(s)
	kept := words[:0:0]
	var removed []string
	for _, w := range words {
		if p.IsStopword(w) {
			removed = append(removed, w)
			continue
		}
		kept = append(kept, w)
	}
	if len(removed) == 0 {
		return s, nil
	}
	return strings.Join(kept, " "), removed
}

// PreprocessIndexItems removes stopwords from processed fields. Values
// consisting only of stopwords are dropped.
func (p *Processor) PreprocessIndexItems(items map[string]*domain.Item) {
	for _, item := range items {
		for id, f := range item.Fields {
			if !p.TestField(id, f) {
				continue
			}
			kept := make([]any, 0, len(f.Values))
			for _, v := range f.Values {
				s, ok := v.(string)
				if !ok {
					kept = append(kept, v)
					continue
				}
				if out, _ := p.filter(s); out != "" || s == "" {
					kept = append(kept, out)
				}
			}
			f.Values = kept
		}
	}
}

// PreprocessSearchQuery removes stopwords from the keys and remembers them.
// Keys consisting only of stopwords are dropped.
func (p *Processor) PreprocessSearchQuery(q *domain.Query) {
	p.ignored = nil
	if !q.HasKeys() || !p.KeysApply(q) {
		return
	}
	kept := q.Keys[:0:0]
	for _, k := range q.Keys {
		out, removed := p.filter(k)
		p.ignored = append(p.ignored, removed...)
		if out != "" {
			kept = append(kept, out)
		}
	}
	q.Keys = kept
}

// PostprocessSearchResults reports the removed keys as ignored.
func (p *Processor) PostprocessSearchResults(rs *domain.ResultSet, _ *domain.Query) {
	rs.AddIgnored(p.ignored...)
}
