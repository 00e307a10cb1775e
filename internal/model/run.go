package model

import "time"

// RunRecord is a persisted task run.
type RunRecord struct {
	ID           string    `json:"id" db:"id"`
	Task         string    `json:"task" db:"task"`
	Plan         string    `json:"plan" db:"plan"`
	Status       string    `json:"status" db:"status"`
	StepCount    int       `json:"step_count" db:"step_count"`
	FailureCount int       `json:"failure_count" db:"failure_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// Steps is only populated by single-run lookups.
	Steps []RunStep `json:"steps,omitempty" db:"-"`
}

// RunStep is one persisted step outcome. Result and Diagnostics hold the
// JSON encoding of the outcome payload and diagnostics.
type RunStep struct {
	RunID       string `json:"run_id" db:"run_id"`
	Position    int    `json:"position" db:"position"`
	Operation   string `json:"operation" db:"operation"`
	RawText     string `json:"raw_text" db:"raw_text"`
	Status      string `json:"status" db:"status"`
	Error       string `json:"error,omitempty" db:"error"`
	Result      string `json:"result,omitempty" db:"result"`
	Diagnostics string `json:"diagnostics,omitempty" db:"diagnostics"`
}
