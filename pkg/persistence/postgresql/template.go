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

// TemplateRepository handles workflow template database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	now := time.Now().UTC()

	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	if template.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate template ID: %w", err)
		}

		template.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	upsert := `
		INSERT INTO workflow_templates (id, name, industry, owner_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, upsert,
		template.ID, template.Name, string(template.Industry), template.OwnerID,
		template.IsActive, template.CreatedAt, template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM template_tasks WHERE template_id = $1", template.ID)
	if err != nil {
		return fmt.Errorf("failed to clear template tasks: %w", err)
	}

	for _, task := range template.Tasks {
		if task.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate task ID: %w", err)
			}

			task.ID = id.String()
		}

		config, err := json.Marshal(task.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal task config: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO template_tasks (template_id, id, name, task_type, display_order, config)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, template.ID, task.ID, task.Name, string(task.Type), task.DisplayOrder, config)
		if err != nil {
			return fmt.Errorf("failed to save task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template save: %w", err)
	}

	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	query := `
		SELECT
			id
		  , name
		  , industry
		  , owner_id
		  , is_active
		  , created_at
		  , updated_at
		FROM workflow_templates
		WHERE id = $1
	`

	template := &models.WorkflowTemplate{}

	var industry string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID, &template.Name, &industry, &template.OwnerID,
		&template.IsActive, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	template.Industry = models.Industry(industry)

	if err := r.loadTasks(ctx, template); err != nil {
		return nil, err
	}

	return template, nil
}

func (r *TemplateRepository) loadTasks(ctx context.Context, template *models.WorkflowTemplate) error {
	query := `
		SELECT
			id
		  , name
		  , task_type
		  , display_order
		  , config
		FROM template_tasks
		WHERE template_id = $1
		ORDER BY display_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, template.ID)
	if err != nil {
		return fmt.Errorf("failed to query template tasks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	template.Tasks = make([]*models.TaskDefinition, 0)

	for rows.Next() {
		task := &models.TaskDefinition{}

		var (
			taskType string
			config   []byte
		)

		if err := rows.Scan(&task.ID, &task.Name, &taskType, &task.DisplayOrder, &config); err != nil {
			return fmt.Errorf("failed to scan task: %w", err)
		}

		task.Type = models.TaskType(taskType)

		if len(config) > 0 {
			if err := json.Unmarshal(config, &task.Config); err != nil {
				return fmt.Errorf("failed to unmarshal task config: %w", err)
			}
		}

		template.Tasks = append(template.Tasks, task)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tasks: %w", err)
	}

	return nil
}

func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID string, industry *models.Industry) ([]*models.WorkflowTemplate, error) {
	query := `
		SELECT id
		FROM workflow_templates
		WHERE owner_id = $1 AND ($2::text IS NULL OR industry = $2)
		ORDER BY created_at DESC
	`

	var industryArg any
	if industry != nil {
		industryArg = string(*industry)
	}

	rows, err := r.db.QueryContext(ctx, query, ownerID, industryArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan template id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	templates := make([]*models.WorkflowTemplate, 0, len(ids))

	for _, id := range ids {
		template, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		templates = append(templates, template)
	}

	return templates, nil
}

func (r *TemplateRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflow_templates WHERE owner_id = $1", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}

	return count, nil
}
