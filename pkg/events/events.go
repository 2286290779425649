// Package events defines event types and structures for workflow instance
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for all instance lifecycle events.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Instance lifecycle events.
	InstanceStartedEvent   EventType = "instance.started"
	InstanceCompletedEvent EventType = "instance.completed"
	InstanceFailedEvent    EventType = "instance.failed"

	// Task execution events.
	TaskStartedEvent   EventType = "task.started"
	TaskCompletedEvent EventType = "task.completed"
	TaskFailedEvent    EventType = "task.failed"
	TaskSkippedEvent   EventType = "task.skipped"

	// Approval gate events.
	GateAwaitingEvent EventType = "gate.awaiting"
	GateApprovedEvent EventType = "gate.approved"
	GateRejectedEvent EventType = "gate.rejected"
	GateReminderEvent EventType = "gate.reminder"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh event envelope for an instance.
func NewBaseEvent(eventType EventType, instanceID, ownerID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instanceID,
		OwnerID:    ownerID,
	}
}

type InstanceStarted struct {
	BaseEvent

	TemplateID  string `json:"template_id"`
	LeadID      string `json:"lead_id"`
	FirstTaskID string `json:"first_task_id,omitempty"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type InstanceCompleted struct {
	BaseEvent

	TemplateID string        `json:"template_id"`
	LeadID     string        `json:"lead_id"`
	Duration   time.Duration `json:"duration"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

type InstanceFailed struct {
	BaseEvent

	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error"`
}

func (e InstanceFailed) GetType() EventType {
	return InstanceFailedEvent
}

type TaskStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	TaskID       string `json:"task_id"`
	TaskType     string `json:"task_type"`
	DisplayOrder int    `json:"display_order"`
}

func (e TaskStarted) GetType() EventType {
	return TaskStartedEvent
}

type TaskCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TaskID      string         `json:"task_id"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type TaskFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	Error       string `json:"error"`
}

func (e TaskFailed) GetType() EventType {
	return TaskFailedEvent
}

// TaskSkipped is published when a conditional branch jumps past a task.
type TaskSkipped struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	TaskID       string `json:"task_id"`
	DisplayOrder int    `json:"display_order"`
}

func (e TaskSkipped) GetType() EventType {
	return TaskSkippedEvent
}

type GateAwaiting struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	Prompt      string `json:"prompt,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
}

func (e GateAwaiting) GetType() EventType {
	return GateAwaitingEvent
}

type GateApproved struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	DecidedBy   string `json:"decided_by"`
	Notes       string `json:"notes,omitempty"`
}

func (e GateApproved) GetType() EventType {
	return GateApprovedEvent
}

type GateRejected struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	DecidedBy   string `json:"decided_by"`
	Notes       string `json:"notes,omitempty"`
}

func (e GateRejected) GetType() EventType {
	return GateRejectedEvent
}

// GateReminder is published by the reminder daemon for gates that have
// been awaiting a decision for too long.
type GateReminder struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	TaskID      string    `json:"task_id"`
	AwaitingFor string    `json:"awaiting_for"`
	StartedAt   time.Time `json:"started_at"`
}

func (e GateReminder) GetType() EventType {
	return GateReminderEvent
}
