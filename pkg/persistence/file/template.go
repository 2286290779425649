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

const templatesDir = "templates"

// TemplateRepository stores workflow templates as JSON files.
type TemplateRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	for _, task := range template.Tasks {
		if task.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate task ID: %w", err)
			}

			task.ID = id.String()
		}
	}

	template.SortTasks()

	return writeEntity(r.root, templatesDir, template.ID, template)
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	var template models.WorkflowTemplate

	err := readEntity(r.root, templatesDir, id, &template)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to read template %s: %w", id, err)
	}

	return &template, nil
}

func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID string, industry *models.Industry) ([]*models.WorkflowTemplate, error) {
	ids, err := listIDs(r.root, templatesDir)
	if err != nil {
		return nil, err
	}

	templates := make([]*models.WorkflowTemplate, 0, len(ids))

	for _, id := range ids {
		template, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if template.OwnerID != ownerID {
			continue
		}

		if industry != nil && template.Industry != *industry {
			continue
		}

		templates = append(templates, template)
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})

	return templates, nil
}

func (r *TemplateRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	templates, err := r.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		return 0, err
	}

	return int64(len(templates)), nil
}
