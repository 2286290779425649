package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// ExecutionRepository handles task execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `
	id
  , instance_id
  , task_id
  , status
  , output
  , error
  , notes
  , decided_by
  , started_at
  , completed_at
  , created_at
`

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.TaskExecution) error {
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

	output, err := json.Marshal(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}

	query := `
		INSERT INTO task_executions (id, instance_id, task_id, status, output, error, notes, decided_by, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			notes = EXCLUDED.notes,
			decided_by = EXCLUDED.decided_by,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.InstanceID, execution.TaskID, string(execution.Status),
		output, nullable(execution.Error), nullable(execution.Notes), nullable(execution.DecidedBy),
		execution.StartedAt, execution.CompletedAt, execution.CreatedAt)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.TaskExecution, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT"+executionColumns+"FROM task_executions WHERE id = $1", id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.TaskExecution, error) {
	query := "SELECT" + executionColumns + `
		FROM task_executions
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`

	return r.queryExecutions(ctx, query, instanceID)
}

func (r *ExecutionRepository) ListAwaiting(ctx context.Context, before time.Time) ([]*models.TaskExecution, error) {
	query := "SELECT" + executionColumns + `
		FROM task_executions
		WHERE status = 'awaiting_hitl' AND started_at < $1
		ORDER BY started_at ASC
	`

	return r.queryExecutions(ctx, query, before)
}

func (r *ExecutionRepository) CountAwaitingByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM task_executions e
		JOIN workflow_instances i ON i.id = e.instance_id
		WHERE e.status = 'awaiting_hitl' AND i.owner_id = $1
	`

	var count int64

	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count awaiting executions: %w", err)
	}

	return count, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.TaskExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.TaskExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.TaskExecution, error) {
	execution := &models.TaskExecution{}

	var (
		status                   string
		output                   []byte
		errMsg, notes, decidedBy sql.NullString
		startedAt, completedAt   sql.NullTime
	)

	err := row.Scan(
		&execution.ID, &execution.InstanceID, &execution.TaskID, &status,
		&output, &errMsg, &notes, &decidedBy, &startedAt, &completedAt, &execution.CreatedAt)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.Error = errMsg.String
	execution.Notes = notes.String
	execution.DecidedBy = decidedBy.String

	if len(output) > 0 {
		if err := json.Unmarshal(output, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}

	if startedAt.Valid {
		execution.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return execution, nil
}
