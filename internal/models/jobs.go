package models

import "time"

// Job statuses.
const (
	JobStatusPending  = "pending"
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
	JobStatusFailed   = "failed"
)

// AnalysisJob is one pipeline invocation submitted to the background worker
// pool. The pipeline call itself is the unit of work; triggering an analysis
// returns immediately to the caller.
type AnalysisJob struct {
	ID              string       `json:"id"`
	Symbol          string       `json:"symbol"`
	ExtractionModel string       `json:"extraction_model"`
	AnalysisModel   string       `json:"analysis_model"`
	UserProfile     *UserProfile `json:"user_profile,omitempty"`

	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}
