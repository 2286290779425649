// Package persistence provides the data storage abstraction for workflow
// templates, leads, instances and task executions. The engine only ever
// talks to these interfaces, so the state machine is testable against the
// file implementation without a database.
package persistence

import (
	"context"
	"time"

	"github.com/vantagecrm/leadflow/pkg/models"
)

// Persistence aggregates the tenant-scoped repositories backing the engine.
type Persistence interface {
	TemplateRepository() TemplateRepository
	LeadRepository() LeadRepository
	InstanceRepository() InstanceRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// TemplateRepository stores workflow templates and their ordered tasks.
type TemplateRepository interface {
	Save(ctx context.Context, template *models.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	ListByOwner(ctx context.Context, ownerID string, industry *models.Industry) ([]*models.WorkflowTemplate, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}

// LeadRepository stores the CRM leads workflows run against.
type LeadRepository interface {
	Save(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Lead, error)
}

// InstanceRepository stores workflow instances. All status mutations go
// through TransitionStatus so concurrent advancement is detected.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)

	// FindActive returns the active (running, paused or awaiting approval)
	// instance for the template/lead pair, or ErrInstanceNotFound.
	FindActive(ctx context.Context, templateID, leadID string) (*models.WorkflowInstance, error)

	// TransitionStatus atomically moves the instance to the target status
	// if its current status is one of the expected ones, stamping
	// CompletedAt when the target is terminal. Returns
	// ErrInstanceStatusConflict when the stored status is not expected,
	// which is how duplicate advancement calls are rejected.
	TransitionStatus(ctx context.Context, id string, from []models.InstanceStatus, to models.InstanceStatus) (*models.WorkflowInstance, error)

	// SetCurrentTask moves the instance's task pointer.
	SetCurrentTask(ctx context.Context, id, taskID string) error

	ListByOwner(ctx context.Context, ownerID string) ([]*models.WorkflowInstance, error)
	CountByOwnerAndStatus(ctx context.Context, ownerID string, statuses ...models.InstanceStatus) (int64, error)
}

// ExecutionRepository stores task execution history. Rows are append-only:
// Save creates or updates a row, Delete does not exist.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.TaskExecution) error
	GetByID(ctx context.Context, id string) (*models.TaskExecution, error)
	ListByInstance(ctx context.Context, instanceID string) ([]*models.TaskExecution, error)

	// ListAwaiting returns executions sitting in awaiting_hitl since before
	// the given time, for the external reminder process.
	ListAwaiting(ctx context.Context, before time.Time) ([]*models.TaskExecution, error)

	CountAwaitingByOwner(ctx context.Context, ownerID string) (int64, error)
}
