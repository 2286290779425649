package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores task executions as JSON files.
type ExecutionRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.TaskExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	if execution.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution ID: %w", err)
		}

		execution.ID = id.String()
	}

	return writeEntity(r.root, executionsDir, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.TaskExecution, error) {
	var execution models.TaskExecution

	err := readEntity(r.root, executionsDir, id, &execution)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return &execution, nil
}

func (r *ExecutionRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.TaskExecution, error) {
	executions, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.TaskExecution, 0)

	for _, execution := range executions {
		if execution.InstanceID == instanceID {
			matched = append(matched, execution)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched, nil
}

func (r *ExecutionRepository) ListAwaiting(ctx context.Context, before time.Time) ([]*models.TaskExecution, error) {
	executions, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	awaiting := make([]*models.TaskExecution, 0)

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusAwaitingHITL {
			continue
		}

		if execution.StartedAt != nil && execution.StartedAt.Before(before) {
			awaiting = append(awaiting, execution)
		}
	}

	return awaiting, nil
}

func (r *ExecutionRepository) CountAwaitingByOwner(ctx context.Context, ownerID string) (int64, error) {
	executions, err := r.all(ctx)
	if err != nil {
		return 0, err
	}

	var count int64

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusAwaitingHITL {
			continue
		}

		var instance models.WorkflowInstance
		if err := readEntity(r.root, instancesDir, execution.InstanceID, &instance); err != nil {
			if isNotExist(err) {
				continue
			}

			return 0, err
		}

		if instance.OwnerID == ownerID {
			count++
		}
	}

	return count, nil
}

func (r *ExecutionRepository) all(ctx context.Context) ([]*models.TaskExecution, error) {
	ids, err := listIDs(r.root, executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.TaskExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
