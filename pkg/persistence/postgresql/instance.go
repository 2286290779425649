package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// InstanceRepository handles workflow instance database operations. Status
// transitions are guarded with a conditional UPDATE so concurrent
// advancement calls lose cleanly instead of double-writing.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const instanceColumns = `
	id
  , template_id
  , lead_id
  , owner_id
  , status
  , current_task_id
  , created_at
  , updated_at
  , completed_at
`

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	}

	query := `
		INSERT INTO workflow_instances (id, template_id, lead_id, owner_id, status, current_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		instance.ID, instance.TemplateID, instance.LeadID, instance.OwnerID,
		string(instance.Status), nullable(instance.CurrentTaskID),
		instance.CreatedAt, instance.UpdatedAt)
	if err != nil {
		return persistence.NewInstanceError("Create", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT"+instanceColumns+"FROM workflow_instances WHERE id = $1", id)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) FindActive(ctx context.Context, templateID, leadID string) (*models.WorkflowInstance, error) {
	query := "SELECT" + instanceColumns + `
		FROM workflow_instances
		WHERE template_id = $1 AND lead_id = $2
		  AND status IN ('running', 'paused', 'awaiting_hitl')
		LIMIT 1
	`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, templateID, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to find active instance: %w", err)
	}

	return instance, nil
}

func (r *InstanceRepository) TransitionStatus(ctx context.Context, id string, from []models.InstanceStatus, to models.InstanceStatus) (*models.WorkflowInstance, error) {
	expected := make([]string, 0, len(from))
	for _, status := range from {
		expected = append(expected, string(status))
	}

	query := `
		UPDATE workflow_instances
		SET status = $1,
		    updated_at = NOW(),
		    completed_at = CASE WHEN $2 THEN NOW() ELSE completed_at END
		WHERE id = $3 AND status = ANY($4)
		RETURNING` + instanceColumns

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query,
		string(to), to.IsTerminal(), id, pq.Array(expected)))
	if err == nil {
		return instance, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("TransitionStatus", id, err)
	}

	// No row matched: either the instance does not exist or its status
	// already moved under us.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}

	return nil, persistence.NewInstanceError("TransitionStatus", id, persistence.ErrInstanceStatusConflict)
}

func (r *InstanceRepository) SetCurrentTask(ctx context.Context, id, taskID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflow_instances SET current_task_id = $1, updated_at = NOW() WHERE id = $2",
		nullable(taskID), id)
	if err != nil {
		return persistence.NewInstanceError("SetCurrentTask", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewInstanceError("SetCurrentTask", id, err)
	}

	if affected == 0 {
		return persistence.ErrInstanceNotFound
	}

	return nil
}

func (r *InstanceRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.WorkflowInstance, error) {
	query := "SELECT" + instanceColumns + `
		FROM workflow_instances
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

func (r *InstanceRepository) CountByOwnerAndStatus(ctx context.Context, ownerID string, statuses ...models.InstanceStatus) (int64, error) {
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}

	var count int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflow_instances WHERE owner_id = $1 AND status = ANY($2)",
		ownerID, pq.Array(names)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	instance := &models.WorkflowInstance{}

	var (
		status        string
		currentTaskID sql.NullString
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&instance.ID, &instance.TemplateID, &instance.LeadID, &instance.OwnerID,
		&status, &currentTaskID, &instance.CreatedAt, &instance.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	instance.Status = models.InstanceStatus(status)
	instance.CurrentTaskID = currentTaskID.String

	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}

	return instance, nil
}
