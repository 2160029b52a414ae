package services

import (
	"fmt"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// pipelineRun tracks the state of one indexing or search invocation.
type pipelineRun struct {
	indexID string
	state   domain.PipelineState
}

func newPipelineRun(indexID string) *pipelineRun {
	return &pipelineRun{indexID: indexID, state: domain.PipelineIdle}
}

// advance moves the run to the next state. Skipping or repeating a stage
// is an error.
func (r *pipelineRun) advance(next domain.PipelineState) error {
	if !r.state.CanAdvance(next) {
		return fmt.Errorf("index %q: %s -> %s: %w", r.indexID, r.state, next, domain.ErrReentrantPipeline)
	}
	r.state = next
	return nil
}
