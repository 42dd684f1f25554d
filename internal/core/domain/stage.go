package domain

import "fmt"

// Stage identifies a step of the answering pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageResolve  Stage = "resolve"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// StageError is the terminal failure of an answer request. It records the
// pipeline stage that failed and wraps the underlying cause. A request
// never produces a partial answer alongside a StageError.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("answer pipeline failed at stage %q: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the failing stage.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
