// Package pipeline orchestrates resume processing: validation, text extraction, profile analysis,
// component selection and layout, with retry and fallback at every stage that depends on an
// upstream service.
package pipeline

import "time"

// Stage is a step of a pipeline run
type Stage string

// Pipeline stages, in execution order. StageError is terminal.
const (
	StageValidation         Stage = "validation"
	StageExtraction         Stage = "extraction"
	StageAnalysis           Stage = "analysis"
	StageComponentSelection Stage = "component_selection"
	StageLayoutGeneration   Stage = "layout_generation"
	StageComplete           Stage = "complete"
	StageError              Stage = "error"
)

// Stages lists the working stages in execution order
var Stages = []Stage{
	StageValidation,
	StageExtraction,
	StageAnalysis,
	StageComponentSelection,
	StageLayoutGeneration,
}

// ProgressRange is the inclusive percent range a stage reports within
type ProgressRange struct {
	Start int
	End   int
}

var stageRanges = map[Stage]ProgressRange{
	StageValidation:         {0, 10},
	StageExtraction:         {10, 35},
	StageAnalysis:           {35, 65},
	StageComponentSelection: {65, 85},
	StageLayoutGeneration:   {85, 100},
	StageComplete:           {100, 100},
}

// Range returns the progress range for a stage. The error stage has no range.
func (s Stage) Range() (ProgressRange, bool) {
	r, ok := stageRanges[s]
	return r, ok
}

// Progress is a single progress event
type Progress struct {
	SubmissionID string    `json:"submission_id"`
	Stage        Stage     `json:"stage"`
	Percent      int       `json:"progress"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

func newProgress(submissionID string, stage Stage, percent int, message string, at time.Time) Progress {
	return Progress{
		SubmissionID: submissionID,
		Stage:        stage,
		Percent:      max(0, min(100, percent)),
		Message:      message,
		Timestamp:    at.UTC(),
	}
}

// ProgressSink receives progress events. Sinks are called synchronously.
type ProgressSink interface {
	OnEvent(Progress)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(Progress)

// OnEvent calls f
func (f ProgressFunc) OnEvent(p Progress) {
	f(p)
}
