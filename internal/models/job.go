package models

import (
	"time"
)

// Provision job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// ProvisionJob represents one attempt to provision an instance onto a host.
// completed/failed are terminal; a failed job is never retried automatically.
type ProvisionJob struct {
	ID          string
	InstanceID  string
	Status      string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       *string
	CreatedAt   time.Time
}

// ProvisionLog represents a progress log entry written during a provisioning attempt
type ProvisionLog struct {
	ID        string
	JobID     string
	Action    string
	Status    string
	Message   string
	CreatedAt time.Time
}
