package services

import (
	"context"

	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// WorkflowStats summarizes a tenant's workflow activity for the dashboard.
type WorkflowStats struct {
	Templates         int64 `json:"templates"`
	ActiveInstances   int64 `json:"active_instances"`
	Completed         int64 `json:"completed"`
	Failed            int64 `json:"failed"`
	Rejected          int64 `json:"rejected"`
	AwaitingApprovals int64 `json:"awaiting_approvals"`
}

// Stats aggregates per-tenant counters.
type Stats struct {
	persistence persistence.Persistence
}

func NewStats(p persistence.Persistence) *Stats {
	return &Stats{persistence: p}
}

// WorkflowStats collects the tenant's counters in one pass.
func (s *Stats) WorkflowStats(ctx context.Context, ownerID string) (*WorkflowStats, error) {
	templates, err := s.persistence.TemplateRepository().CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	instances := s.persistence.InstanceRepository()

	active, err := instances.CountByOwnerAndStatus(ctx, ownerID,
		models.InstanceStatusRunning, models.InstanceStatusPaused, models.InstanceStatusAwaitingHITL)
	if err != nil {
		return nil, err
	}

	completed, err := instances.CountByOwnerAndStatus(ctx, ownerID, models.InstanceStatusCompleted)
	if err != nil {
		return nil, err
	}

	failed, err := instances.CountByOwnerAndStatus(ctx, ownerID, models.InstanceStatusFailed)
	if err != nil {
		return nil, err
	}

	rejected, err := instances.CountByOwnerAndStatus(ctx, ownerID, models.InstanceStatusRejected)
	if err != nil {
		return nil, err
	}

	awaiting, err := s.persistence.ExecutionRepository().CountAwaitingByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &WorkflowStats{
		Templates:         templates,
		ActiveInstances:   active,
		Completed:         completed,
		Failed:            failed,
		Rejected:          rejected,
		AwaitingApprovals: awaiting,
	}, nil
}
