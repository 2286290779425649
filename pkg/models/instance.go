package models

import "time"

// InstanceStatus is the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusRunning      InstanceStatus = "running"
	InstanceStatusPaused       InstanceStatus = "paused"
	InstanceStatusAwaitingHITL InstanceStatus = "awaiting_hitl"
	InstanceStatusCompleted    InstanceStatus = "completed"
	InstanceStatusRejected     InstanceStatus = "rejected"
	InstanceStatusFailed       InstanceStatus = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusCompleted, InstanceStatusRejected, InstanceStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status blocks starting another instance for
// the same (template, lead) pair. Paused instances still count as active.
func (s InstanceStatus) IsActive() bool {
	switch s {
	case InstanceStatusRunning, InstanceStatusPaused, InstanceStatusAwaitingHITL:
		return true
	default:
		return false
	}
}

// WorkflowInstance is one execution of a template against a lead. It is
// created by the engine, mutated only through engine transitions, and once
// terminal it is never reopened.
type WorkflowInstance struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"template_id"`
	LeadID        string         `json:"lead_id"`
	OwnerID       string         `json:"owner_id"`
	Status        InstanceStatus `json:"status"`
	CurrentTaskID string         `json:"current_task_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// ExecutionStatus is the lifecycle state of a single task execution.
type ExecutionStatus string

const (
	ExecutionStatusPending      ExecutionStatus = "pending"
	ExecutionStatusRunning      ExecutionStatus = "running"
	ExecutionStatusCompleted    ExecutionStatus = "completed"
	ExecutionStatusAwaitingHITL ExecutionStatus = "awaiting_hitl"
	ExecutionStatusApproved     ExecutionStatus = "approved"
	ExecutionStatusRejected     ExecutionStatus = "rejected"
	ExecutionStatusFailed       ExecutionStatus = "failed"
	ExecutionStatusSkipped      ExecutionStatus = "skipped"
)

// TaskExecution records one task's attempt within an instance. Rows are
// append-only history: they are created when a task becomes current and
// never reused for a different task.
type TaskExecution struct {
	ID          string          `json:"id"`
	InstanceID  string          `json:"instance_id"`
	TaskID      string          `json:"task_id"`
	Status      ExecutionStatus `json:"status"`
	Output      map[string]any  `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	DecidedBy   string          `json:"decided_by,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
