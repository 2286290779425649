package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
	"github.com/vantagecrm/leadflow/pkg/registry"
)

// Template manages workflow template definitions for a tenant.
type Template struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewTemplate(p persistence.Persistence, reg *registry.Registry, v *validator.Validate) *Template {
	return &Template{
		persistence: p,
		registry:    reg,
		validator:   v,
	}
}

// HealthCheck checks the health of the persistence layer.
func (t *Template) HealthCheck(ctx context.Context) (string, bool) {
	if t.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := t.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateTemplate validates and stores a new template with its task list.
// Task IDs are assigned when missing.
func (t *Template) CreateTemplate(ctx context.Context, template *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	if template.ID == "" {
		template.ID = uuid.Must(uuid.NewV7()).String()
	}

	for _, task := range template.Tasks {
		if task.ID == "" {
			task.ID = uuid.Must(uuid.NewV7()).String()
		}
	}

	if err := t.validate(template); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	template.SortTasks()

	if err := t.persistence.TemplateRepository().Save(ctx, template); err != nil {
		return nil, err
	}

	return template, nil
}

// GetTemplate fetches a template within the tenant's scope. Templates of
// other tenants read as not found.
func (t *Template) GetTemplate(ctx context.Context, id, ownerID string) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.TemplateRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if template.OwnerID != ownerID {
		return nil, persistence.ErrTemplateNotFound
	}

	return template, nil
}

// ListTemplates lists the tenant's templates, optionally filtered by
// industry.
func (t *Template) ListTemplates(ctx context.Context, ownerID string, industry *models.Industry) ([]*models.WorkflowTemplate, error) {
	if industry != nil && !models.ValidIndustry(*industry) {
		return nil, fmt.Errorf("%w: unknown industry %q", ErrValidation, *industry)
	}

	return t.persistence.TemplateRepository().ListByOwner(ctx, ownerID, industry)
}

// validate checks the struct tags plus the cross-field rules a tag cannot
// express: unique display orders, config matching task type, and known
// executor types.
func (t *Template) validate(template *models.WorkflowTemplate) error {
	if err := t.validator.Struct(template); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	if !models.ValidIndustry(template.Industry) {
		return fmt.Errorf("%w: unknown industry %q", ErrValidation, template.Industry)
	}

	orders := make(map[int]string, len(template.Tasks))

	for _, task := range template.Tasks {
		if other, taken := orders[task.DisplayOrder]; taken {
			return fmt.Errorf("%w: tasks %s and %s share display order %d",
				ErrValidation, other, task.Name, task.DisplayOrder)
		}

		orders[task.DisplayOrder] = task.Name

		if err := t.validateTaskConfig(task); err != nil {
			return err
		}
	}

	return nil
}

func (t *Template) validateTaskConfig(task *models.TaskDefinition) error {
	switch task.Type {
	case models.TaskTypeAutomated:
		if task.Config.Automated == nil {
			return fmt.Errorf("%w: automated task %s needs an executor configuration", ErrValidation, task.Name)
		}

		if t.registry != nil && !t.registry.HasExecutor(task.Config.Automated.ExecutorType) {
			return fmt.Errorf("%w: unknown executor type %q on task %s",
				ErrValidation, task.Config.Automated.ExecutorType, task.Name)
		}
	case models.TaskTypeGate:
		if task.Config.Gate == nil {
			return fmt.Errorf("%w: gate task %s needs a gate configuration", ErrValidation, task.Name)
		}
	case models.TaskTypeConditional:
		if task.Config.Conditional == nil || len(task.Config.Conditional.Rules) == 0 {
			return fmt.Errorf("%w: conditional task %s needs at least one rule", ErrValidation, task.Name)
		}

		// Jumps are forward-only; a rule targeting its own or an earlier
		// order would revisit tasks and never terminate.
		for _, rule := range task.Config.Conditional.Rules {
			if rule.NextOrder <= task.DisplayOrder {
				return fmt.Errorf("%w: rule on task %s targets display order %d, which does not come after %d",
					ErrValidation, task.Name, rule.NextOrder, task.DisplayOrder)
			}
		}
	default:
		return fmt.Errorf("%w: unknown task type %q on task %s", ErrValidation, task.Type, task.Name)
	}

	return nil
}
