// Package models defines the core domain models for CRM workflow execution.
package models

import (
	"sort"
	"time"
)

// Industry identifies the vertical a template or lead belongs to. Templates
// can only be started against leads of the same industry.
type Industry string

const (
	IndustryGeneric    Industry = "generic"
	IndustryRealEstate Industry = "real_estate"
	IndustryDental     Industry = "dental"
	IndustryMedical    Industry = "medical"
	IndustryClub       Industry = "club"
)

// ValidIndustry reports whether the given industry is a known vertical.
func ValidIndustry(i Industry) bool {
	switch i {
	case IndustryGeneric, IndustryRealEstate, IndustryDental, IndustryMedical, IndustryClub:
		return true
	default:
		return false
	}
}

// TaskType discriminates how the engine treats a task.
type TaskType string

const (
	// TaskTypeAutomated runs an executor and records its output.
	TaskTypeAutomated TaskType = "automated"
	// TaskTypeGate pauses the instance until a human approves or rejects.
	TaskTypeGate TaskType = "hitl_gate"
	// TaskTypeConditional evaluates branch rules to pick the next task.
	TaskTypeConditional TaskType = "conditional"
)

// AutomatedConfig configures an automated task: which executor runs it and
// with what parameters.
type AutomatedConfig struct {
	ExecutorType string         `json:"executor_type" validate:"required"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// GateConfig configures a human approval gate.
type GateConfig struct {
	Prompt  string `json:"prompt,omitempty"`
	Urgency string `json:"urgency,omitempty" validate:"omitempty,oneof=low normal high"`
}

// ConditionalConfig configures a branching task. Rules are evaluated in
// declared order and the first match wins.
type ConditionalConfig struct {
	Rules []BranchRule `json:"rules" validate:"required,min=1,dive"`
}

// TaskConfig is a closed tagged variant: exactly one member is set,
// matching the task's Type.
type TaskConfig struct {
	Automated   *AutomatedConfig   `json:"automated,omitempty"`
	Gate        *GateConfig        `json:"gate,omitempty"`
	Conditional *ConditionalConfig `json:"conditional,omitempty"`
}

// TaskDefinition is one step of a workflow template. DisplayOrder is unique
// per template and defines the default execution sequence.
type TaskDefinition struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"          validate:"required"`
	Type         TaskType   `json:"type"          validate:"required,oneof=automated hitl_gate conditional"`
	DisplayOrder int        `json:"display_order" validate:"min=1"`
	Config       TaskConfig `json:"config"`
}

// IsGate reports whether this task requires a human decision.
func (t *TaskDefinition) IsGate() bool {
	return t.Type == TaskTypeGate
}

// WorkflowTemplate is a reusable ordered definition of tasks for one
// industry vertical, owned by a tenant.
type WorkflowTemplate struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"     validate:"required,min=3"`
	Industry  Industry          `json:"industry" validate:"required"`
	OwnerID   string            `json:"owner_id" validate:"required"`
	Tasks     []*TaskDefinition `json:"tasks"    validate:"dive"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SortTasks orders the task list by display order in place.
func (w *WorkflowTemplate) SortTasks() {
	sort.SliceStable(w.Tasks, func(i, j int) bool {
		return w.Tasks[i].DisplayOrder < w.Tasks[j].DisplayOrder
	})
}

// FirstTask returns the task with the lowest display order, or nil for an
// empty template.
func (w *WorkflowTemplate) FirstTask() *TaskDefinition {
	var first *TaskDefinition

	for _, task := range w.Tasks {
		if first == nil || task.DisplayOrder < first.DisplayOrder {
			first = task
		}
	}

	return first
}

// TaskByID looks a task up by its identifier.
func (w *WorkflowTemplate) TaskByID(id string) *TaskDefinition {
	for _, task := range w.Tasks {
		if task.ID == id {
			return task
		}
	}

	return nil
}

// TaskByOrder looks a task up by its display order.
func (w *WorkflowTemplate) TaskByOrder(order int) *TaskDefinition {
	for _, task := range w.Tasks {
		if task.DisplayOrder == order {
			return task
		}
	}

	return nil
}

// NextAfter returns the task with the smallest display order strictly
// greater than the given order, or nil when the sequence is exhausted.
func (w *WorkflowTemplate) NextAfter(order int) *TaskDefinition {
	var next *TaskDefinition

	for _, task := range w.Tasks {
		if task.DisplayOrder <= order {
			continue
		}

		if next == nil || task.DisplayOrder < next.DisplayOrder {
			next = task
		}
	}

	return next
}
