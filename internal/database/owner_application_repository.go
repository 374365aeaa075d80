package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

const applicationColumns = `a.id, a.user_id, a.document_url, a.additional_notes, a.status,
	a.submitted_at, a.reviewed_at, a.reviewed_by`

// OwnerApplicationRepository handles stall owner applications
type OwnerApplicationRepository struct {
	db DB
}

// NewOwnerApplicationRepository creates a new OwnerApplicationRepository
func NewOwnerApplicationRepository(db DB) *OwnerApplicationRepository {
	return &OwnerApplicationRepository{db: db}
}

// Create inserts an application
func (r *OwnerApplicationRepository) Create(ctx context.Context, app *models.StallOwnerApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO stall_owner_applications (
			id, user_id, document_url, additional_notes, status, reviewed_at, reviewed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING submitted_at`,
		app.ID, app.UserID, app.DocumentURL, app.AdditionalNotes, app.Status, app.ReviewedAt, app.ReviewedBy,
	).Scan(&app.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create owner application: %w", err)
	}
	return nil
}

// GetLatestForUser returns the user's most recent application or nil
func (r *OwnerApplicationRepository) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error) {
	var app models.StallOwnerApplication
	err := r.db.GetContext(ctx, &app, `SELECT `+applicationColumns+`
		FROM stall_owner_applications a
		WHERE a.user_id = $1
		ORDER BY a.submitted_at DESC
		LIMIT 1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get owner application: %w", err)
	}
	return &app, nil
}

// List returns applications with applicant details, optionally filtered by status
func (r *OwnerApplicationRepository) List(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error) {
	items := []models.OwnerApplicationListItem{}
	err := r.db.SelectContext(ctx, &items, `SELECT `+applicationColumns+`,
			u.full_name, u.email, u.company_name
		FROM stall_owner_applications a
		JOIN users u ON u.id = a.user_id
		WHERE ($1::text = '' OR a.status = $1)
		ORDER BY a.submitted_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list owner applications: %w", err)
	}
	return items, nil
}

type applicationLockRow struct {
	UserID uuid.UUID                `db:"user_id"`
	Status models.ApplicationStatus `db:"status"`
}

// Review records an admin decision on a pending application. Approval also
// grants the stall_owner role in the same transaction.
func (r *OwnerApplicationRepository) Review(ctx context.Context, appID uuid.UUID, decision models.ApplicationStatus, reviewer string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row applicationLockRow
	err = tx.GetContext(ctx, &row,
		`SELECT user_id, status FROM stall_owner_applications WHERE id = $1 FOR UPDATE`, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: application %s", models.ErrNotFound, appID)
		}
		return fmt.Errorf("failed to lock owner application: %w", err)
	}
	if row.Status != models.ApplicationStatusPending {
		return fmt.Errorf("%w: application is %s", models.ErrIneligible, row.Status)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stall_owner_applications
		SET status = $2, reviewed_at = NOW(), reviewed_by = $3
		WHERE id = $1`, appID, decision, reviewer)
	if err != nil {
		return fmt.Errorf("failed to review owner application: %w", err)
	}

	if decision == models.ApplicationStatusApproved {
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET roles = array_append(roles, $2::text), updated_at = NOW()
			WHERE id = $1 AND NOT ($2::text = ANY(roles))`, row.UserID, models.RoleStallOwner)
		if err != nil {
			return fmt.Errorf("failed to grant stall owner role: %w", err)
		}
	}

	return tx.Commit()
}
