package processors

import (
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/aggregation"
	"github.com/custodia-labs/searchapi/internal/processors/ignorecase"
	"github.com/custodia-labs/searchapi/internal/processors/nodestatus"
	"github.com/custodia-labs/searchapi/internal/processors/stopwords"
	"github.com/custodia-labs/searchapi/internal/processors/synonyms"
	"github.com/custodia-labs/searchapi/internal/processors/tokenizer"
	"github.com/custodia-labs/searchapi/internal/processors/transliteration"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register(Definition{
		ID:          aggregation.ID,
		Label:       "Aggregated fields",
		Description: "Combines the values of several fields into one field.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(aggregation.New(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          ignorecase.ID,
		Label:       "Ignore case",
		Description: "Makes searches case-insensitive.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(ignorecase.New(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          nodestatus.ID,
		Label:       "Node status",
		Description: "Excludes unpublished nodes from the index.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(nodestatus.New(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          stopwords.ID,
		Label:       "Stopwords",
		Description: "Removes common words from fulltext and search keys.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(stopwords.New(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          synonyms.ID,
		Label:       "Synonyms",
		Description: "Expands words into their synonyms.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(synonyms.New(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          tokenizer.ID,
		Label:       "Tokenizer",
		Description: "Splits fulltext into individual words.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(tokenizer.Build(ctx, settings))
		},
	})
	r.Register(Definition{
		ID:          transliteration.ID,
		Label:       "Transliteration",
		Description: "Makes searches insensitive to accents.",
		Build: func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
			return wrap(transliteration.New(ctx, settings))
		},
	})
}

// wrap converts a typed constructor result so that a failed build never
// yields a non-nil interface holding a nil pointer.
func wrap[P driven.Processor](p P, err error) (driven.Processor, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
