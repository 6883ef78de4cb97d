package model

import "time"

// RunStats tallies outcomes of one reprocessing run.
type RunStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Total returns the number of items the run touched.
func (s RunStats) Total() int {
	return s.Processed + s.Skipped + s.Errors
}

// RunStatus represents the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
)

// Run is the persisted record of one reprocessing run over the archive.
type Run struct {
	ID         string     `json:"id"`
	Pipeline   string     `json:"pipeline"`
	DryRun     bool       `json:"dry_run"`
	Status     RunStatus  `json:"status"`
	Stats      *RunStats  `json:"stats,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
