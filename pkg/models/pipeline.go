package models

import "time"

// WarningType classifies transform warnings
type WarningType string

const (
	WarningMalformed          WarningType = "malformed"
	WarningDuplicateDiscarded WarningType = "duplicate_discarded"
)

// TransformWarning records a record that was excluded or superseded during
// cleaning. No record is ever dropped without a corresponding warning.
type TransformWarning struct {
	Type        WarningType `json:"type"`
	Entity      string      `json:"entity"`
	RecordKey   string      `json:"record_key"`
	Field       string      `json:"field,omitempty"`
	Message     string      `json:"message"`
	IngestIndex int         `json:"ingest_index"`
}

// Stage identifies how far a pipeline run progressed
type Stage string

const (
	StageTransformed Stage = "transformed"
	StageDQFailed    Stage = "dq_failed"
	StageAggregated  Stage = "aggregated"
)

// Batch is one bounded collection of raw records processed together,
// keyed by entity name.
type Batch struct {
	ID      string                 `json:"id"`
	Records map[string][]RawRecord `json:"records"`
}

// PipelineResult is the terminal artifact of a run. A non-aggregated stage is
// the orchestrator's signal to mark the run failed and halt propagation of
// gold outputs. Every run yields a result; silent no-op failures are
// disallowed.
type PipelineResult struct {
	RunID        string                       `json:"run_id"`
	BatchID      string                       `json:"batch_id"`
	StageReached Stage                        `json:"stage_reached"`
	Entities     map[string][]*Entity         `json:"entities"`
	Warnings     []TransformWarning           `json:"warnings"`
	Reports      map[string]*DQReport         `json:"reports"`
	Metrics      map[string][]AggregateMetric `json:"metrics,omitempty"`
	StartedAt    time.Time                    `json:"started_at"`
	CompletedAt  time.Time                    `json:"completed_at"`
}

// DQPassed reports whether every DQ report in the run passed.
func (r *PipelineResult) DQPassed() bool {
	for _, rep := range r.Reports {
		if !rep.Passed {
			return false
		}
	}
	return true
}
