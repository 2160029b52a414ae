// Package ignorecase provides a processor that lowercases field values and
// search keys.
package ignorecase

import (
	"strings"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "ignorecase"

// New creates an ignorecase processor. By default it processes all
// string and fulltext fields; "fields" restricts the selection.
func New(ctx driven.ProcessorContext, settings map[string]any) (*fieldproc.Base, error) {
	return fieldproc.NewBase(
		fieldproc.NewPlugin(ID, "Ignore case",
			"Makes searches case-insensitive on selected fields.",
			map[domain.Stage]int{
				domain.StagePreprocessIndex: -10,
				domain.StagePreprocessQuery: -10,
			}),
		settings, ctx.Fields, lower,
		domain.TypeText, domain.TypeTokenizedText, domain.TypeString), nil
}

func lower(value any) any {
	if s, ok := value.(string); ok {
		return strings.ToLower(s)
	}
	return value
}
