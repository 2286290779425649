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

const leadsDir = "leads"

// LeadRepository stores leads as JSON files.
type LeadRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	lead.UpdatedAt = now

	if lead.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate lead ID: %w", err)
		}

		lead.ID = id.String()
	}

	return writeEntity(r.root, leadsDir, lead.ID, lead)
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead

	err := readEntity(r.root, leadsDir, id, &lead)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to read lead %s: %w", id, err)
	}

	return &lead, nil
}

func (r *LeadRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Lead, error) {
	ids, err := listIDs(r.root, leadsDir)
	if err != nil {
		return nil, err
	}

	leads := make([]*models.Lead, 0, len(ids))

	for _, id := range ids {
		lead, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if lead.OwnerID == ownerID {
			leads = append(leads, lead)
		}
	}

	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})

	return leads, nil
}
