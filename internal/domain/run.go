package domain

import "time"

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunEmpty     RunStatus = "empty"
	RunFailed    RunStatus = "failed"
)

// ResearchRun is a stored record of one research pipeline execution.
type ResearchRun struct {
	ID          string
	ChatID      int64
	Brand       string
	Status      RunStatus
	Fetched     int
	Relevant    int
	Diagnostics string
	StartedAt   time.Time
	FinishedAt  time.Time
	Findings    []Finding
}
