package job

import (
	"context"
	"time"
)

// RunStatus is the normalized state of a remote run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusUnknown   RunStatus = "unknown"
)

// ParseRunStatus maps a normalized status string to RunStatus.
// Anything unrecognized is StatusUnknown.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return RunStatus(s)
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further polling can change the status.
func (s RunStatus) Terminal() bool {
	return s != StatusPending && s != StatusRunning
}

// JobHandle identifies a remote job for the lifetime of one request.
type JobHandle string

// RunHandle identifies the single execution attached to a JobHandle.
type RunHandle string

// StatusReport is one observation of a run.
type StatusReport struct {
	Status RunStatus
	Reason string // remote-reported failure reason, or the raw status for unknown values
}

// RemoteJobAPI is the remote asynchronous job service the driver steers.
type RemoteJobAPI interface {
	CreateJob(ctx context.Context) (JobHandle, error)
	Submit(ctx context.Context, job JobHandle, content string) error
	Start(ctx context.Context, job JobHandle) (RunHandle, error)
	Status(ctx context.Context, job JobHandle, run RunHandle) (StatusReport, error)
	Result(ctx context.Context, job JobHandle, run RunHandle) (string, error)
}

// Result is the finished output of one run. The caller owns it.
type Result struct {
	JobID   JobHandle
	RunID   RunHandle
	Text    string
	Polls   int
	Elapsed time.Duration
}

// State names the driver's progress through a run.
type State string

const (
	StateCreated   State = "created"
	StateSubmitted State = "submitted"
	StateStarted   State = "started"
	StatePolling   State = "polling"
	StateFinalized State = "finalized"
)
