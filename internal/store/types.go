package store

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one CLI invocation.
type Run struct {
	ID          string
	Command     string
	Corpus      string
	Environment string
	ToolVersion string
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	// FinishedAt is zero while the run is in progress.
	FinishedAt time.Time
}

// BatchRecord describes a prepared or dispatched batch.
type BatchRecord struct {
	RunID       string
	Digest      string
	Corpus      string
	Path        string
	Environment string
	Commands    int
}

// Execution is the outcome of one batch command.
type Execution struct {
	RunID       string
	BatchDigest string
	Index       int
	Command     string
	ExitCode    int
	ContainerID string
	Duration    time.Duration
}
