// Package protocol defines the contracts between the workflow engine and
// its task executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/vantagecrm/leadflow/pkg/models"
)

// ExecutionInput is what an executor receives about the task it runs.
type ExecutionInput struct {
	InstanceID string
	Lead       *models.Lead
	// Parameters is the automated task's configured parameters.
	Parameters map[string]any
	// PriorOutputs maps completed display orders to their recorded output.
	PriorOutputs map[int]map[string]any
}

// Executor performs one automated task. A returned error marks the
// execution (and the instance) failed; the engine never retries on its own.
type Executor interface {
	Execute(ctx context.Context, input ExecutionInput, logger *slog.Logger) (map[string]any, error)
}

// ExecutorFactory builds an executor from task parameters and describes the
// parameter schema it accepts.
type ExecutorFactory interface {
	ID() string
	Name() string
	Description() string
	Schema() *models.JSONSchema
	Create(parameters map[string]any) (Executor, error)
}
