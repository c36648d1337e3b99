package domain

import "time"

// RunStatus is the lifecycle state of a dataset run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
	RunSkipped RunStatus = "skipped" // another run of the dataset was in progress
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerManual    RunTrigger = "manual"
	TriggerSchedule  RunTrigger = "schedule"
	TriggerFileWatch RunTrigger = "file_watch"
)

// RunLog is a historical record of one dataset run.
type RunLog struct {
	ID            string     `json:"id"`
	Dataset       string     `json:"dataset"`
	Trigger       RunTrigger `json:"trigger"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    time.Time  `json:"finishedAt"`
	Status        RunStatus  `json:"status"`
	RowsRead      int        `json:"rowsRead"`
	RowsPublished int        `json:"rowsPublished"`
	Error         string     `json:"error,omitempty"`
}

// Duration is the wall time of a finished run.
func (r RunLog) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunLogStore keeps run history. Implementations must be safe for concurrent use.
type RunLogStore interface {
	CreateRunLog(l *RunLog) error
	UpdateRunLog(l *RunLog) error
	ListRunLogs(dataset string, limit int) ([]RunLog, error)
	LastRun(dataset string) (*RunLog, bool)
}
