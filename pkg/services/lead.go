package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// Lead manages the CRM leads workflows run against.
type Lead struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewLead(p persistence.Persistence, v *validator.Validate) *Lead {
	return &Lead{persistence: p, validator: v}
}

// CreateLead validates and stores a new lead.
func (l *Lead) CreateLead(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.Must(uuid.NewV7()).String()
	}

	if err := l.validator.Struct(lead); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	if !models.ValidIndustry(lead.Industry) {
		return nil, fmt.Errorf("%w: unknown industry %q", ErrValidation, lead.Industry)
	}

	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	if err := l.persistence.LeadRepository().Save(ctx, lead); err != nil {
		return nil, err
	}

	return lead, nil
}

// GetLead fetches a lead within the tenant's scope. Leads of other tenants
// read as not found.
func (l *Lead) GetLead(ctx context.Context, id, ownerID string) (*models.Lead, error) {
	lead, err := l.persistence.LeadRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if lead.OwnerID != ownerID {
		return nil, persistence.ErrLeadNotFound
	}

	return lead, nil
}

// ListLeads lists the tenant's leads.
func (l *Lead) ListLeads(ctx context.Context, ownerID string) ([]*models.Lead, error) {
	return l.persistence.LeadRepository().ListByOwner(ctx, ownerID)
}
