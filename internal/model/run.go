package model

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of the ingestion pipeline as kept in the history store.
type Run struct {
	StartedAt  time.Time
	FinishedAt *time.Time
	Artifact   *Artifact
	ID         string
	SourceURL  string
	Status     RunStatus
	Stage      string
	Error      string
}

// Duration returns how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run produced an artifact.
func (r Run) Succeeded() bool {
	return r.Status == RunStatusSucceeded && r.Artifact != nil
}
