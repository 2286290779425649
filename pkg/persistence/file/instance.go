package file

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

const instancesDir = "instances"

// InstanceRepository stores workflow instances as JSON files. The shared
// mutex makes TransitionStatus a compare-and-swap within the process.
type InstanceRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	return writeEntity(r.root, instancesDir, instance.ID, instance)
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	err := readEntity(r.root, instancesDir, id, &instance)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return &instance, nil
}

func (r *InstanceRepository) FindActive(ctx context.Context, templateID, leadID string) (*models.WorkflowInstance, error) {
	ids, err := listIDs(r.root, instancesDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if instance.TemplateID == templateID && instance.LeadID == leadID && instance.Status.IsActive() {
			return instance, nil
		}
	}

	return nil, persistence.ErrInstanceNotFound
}

func (r *InstanceRepository) TransitionStatus(ctx context.Context, id string, from []models.InstanceStatus, to models.InstanceStatus) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(from, instance.Status) {
		return nil, persistence.NewInstanceError("TransitionStatus", id, persistence.ErrInstanceStatusConflict)
	}

	now := time.Now().UTC()
	instance.Status = to
	instance.UpdatedAt = now

	if to.IsTerminal() {
		instance.CompletedAt = &now
	}

	if err := writeEntity(r.root, instancesDir, id, instance); err != nil {
		return nil, persistence.NewInstanceError("TransitionStatus", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) SetCurrentTask(ctx context.Context, id, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	instance.CurrentTaskID = taskID
	instance.UpdatedAt = time.Now().UTC()

	return writeEntity(r.root, instancesDir, id, instance)
}

func (r *InstanceRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.WorkflowInstance, error) {
	ids, err := listIDs(r.root, instancesDir)
	if err != nil {
		return nil, err
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if instance.OwnerID == ownerID {
			instances = append(instances, instance)
		}
	}

	return instances, nil
}

func (r *InstanceRepository) CountByOwnerAndStatus(ctx context.Context, ownerID string, statuses ...models.InstanceStatus) (int64, error) {
	instances, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	var count int64

	for _, instance := range instances {
		if slices.Contains(statuses, instance.Status) {
			count++
		}
	}

	return count, nil
}
