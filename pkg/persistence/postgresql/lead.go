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

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
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

	attributes, err := json.Marshal(lead.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal lead attributes: %w", err)
	}

	query := `
		INSERT INTO leads (id, owner_id, industry, name, email, phone, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			attributes = EXCLUDED.attributes,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID, lead.OwnerID, string(lead.Industry), lead.Name,
		nullable(lead.Email), nullable(lead.Phone), attributes,
		lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `
		SELECT
			id
		  , owner_id
		  , industry
		  , name
		  , email
		  , phone
		  , attributes
		  , created_at
		  , updated_at
		FROM leads
		WHERE id = $1
	`

	lead := &models.Lead{}

	var (
		industry     string
		email, phone sql.NullString
		attributes   []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lead.ID, &lead.OwnerID, &industry, &lead.Name,
		&email, &phone, &attributes, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	lead.Industry = models.Industry(industry)
	lead.Email = email.String
	lead.Phone = phone.String

	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &lead.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lead attributes: %w", err)
		}
	}

	return lead, nil
}

func (r *LeadRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Lead, error) {
	query := `
		SELECT id
		FROM leads
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
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
			return nil, fmt.Errorf("failed to scan lead id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	leads := make([]*models.Lead, 0, len(ids))

	for _, id := range ids {
		lead, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		leads = append(leads, lead)
	}

	return leads, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}
