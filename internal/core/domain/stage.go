package domain

const unknownDescription = "Unknown"

// Stage is a fixed point in the indexing or search lifecycle where processors run.
type Stage string

// Pipeline stages.
const (
	// StagePreprocessIndex runs on items before they are sent to the backend.
	StagePreprocessIndex Stage = "preprocess_index"

	// StagePreprocessQuery runs on a query before it is executed.
	StagePreprocessQuery Stage = "preprocess_query"

	// StagePostprocessQuery runs on a result set after the query was executed.
	StagePostprocessQuery Stage = "postprocess_query"
)

// IsValid returns true if the stage is recognised.
func (s Stage) IsValid() bool {
	switch s {
	case StagePreprocessIndex, StagePreprocessQuery, StagePostprocessQuery:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Description returns a human-readable description of the stage.
func (s Stage) Description() string {
	switch s {
	case StagePreprocessIndex:
		return "Preprocess index"
	case StagePreprocessQuery:
		return "Preprocess query"
	case StagePostprocessQuery:
		return "Postprocess query"
	default:
		return unknownDescription
	}
}

// AllStages returns the stages in lifecycle order.
func AllStages() []Stage {
	return []Stage{
		StagePreprocessIndex,
		StagePreprocessQuery,
		StagePostprocessQuery,
	}
}

// PipelineState is the state of a single indexing or search run.
type PipelineState string

// Pipeline run states.
const (
	PipelineIdle                  PipelineState = "idle"
	PipelineExtractingFields      PipelineState = "extracting_fields"
	PipelinePreprocessingIndex    PipelineState = "preprocessing_index"
	PipelineIndexed               PipelineState = "indexed"
	PipelinePreprocessingQuery    PipelineState = "preprocessing_query"
	PipelineExecuting             PipelineState = "executing"
	PipelinePostprocessingResults PipelineState = "postprocessing_results"
	PipelineDone                  PipelineState = "done"
)

var pipelineTransitions = map[PipelineState]PipelineState{
	PipelineExtractingFields:      PipelineIdle,
	PipelinePreprocessingIndex:    PipelineExtractingFields,
	PipelineIndexed:               PipelinePreprocessingIndex,
	PipelinePreprocessingQuery:    PipelineIdle,
	PipelineExecuting:             PipelinePreprocessingQuery,
	PipelinePostprocessingResults: PipelineExecuting,
	PipelineDone:                  PipelinePostprocessingResults,
}

// CanAdvance reports whether a run in state s may move to next.
// Every state has exactly one predecessor, so no stage can be skipped or re-entered.
func (s PipelineState) CanAdvance(next PipelineState) bool {
	prev, ok := pipelineTransitions[next]
	return ok && prev == s
}

// IsTerminal reports whether the run is complete.
func (s PipelineState) IsTerminal() bool {
	return s == PipelineIndexed || s == PipelineDone
}
