package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

const stallColumns = `s.id, s.event_id, s.slot_number, s.name, s.location, s.size,
	s.rent_per_day, s.description, s.status, s.owner_id, s.created_at, s.updated_at`

// StallRepository handles database operations for the stalls table
type StallRepository struct {
	db DB
}

// NewStallRepository creates a new StallRepository
func NewStallRepository(db DB) *StallRepository {
	return &StallRepository{db: db}
}

// Create inserts a flat marketplace stall (no parent event)
func (r *StallRepository) Create(ctx context.Context, stall *models.Stall) error {
	if stall.ID == uuid.Nil {
		stall.ID = uuid.New()
	}
	if stall.Status == "" {
		stall.Status = models.StallStatusAvailable
	}

	query := `
		INSERT INTO stalls (
			id, event_id, slot_number, name, location, size,
			rent_per_day, description, status, owner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		stall.ID, stall.EventID, stall.SlotNumber, stall.Name, stall.Location, stall.Size,
		models.RoundMoney(stall.RentPerDay), stall.Description, stall.Status, stall.OwnerID,
	).Scan(&stall.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot number already used", models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create stall: %w", err)
	}
	return nil
}

// GetByID retrieves a stall by ID
func (r *StallRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	query := `SELECT ` + stallColumns + ` FROM stalls s WHERE s.id = $1`
	if err := r.db.GetContext(ctx, &stall, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: stall %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get stall: %w", err)
	}
	return &stall, nil
}

// Update overwrites the editable stall fields
func (r *StallRepository) Update(ctx context.Context, stall *models.Stall) error {
	query := `
		UPDATE stalls
		SET name = $2, location = $3, size = $4, rent_per_day = $5,
			description = $6, status = $7, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		stall.ID, stall.Name, stall.Location, stall.Size,
		models.RoundMoney(stall.RentPerDay), stall.Description, stall.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update stall: %w", err)
	}
	return expectAffected(res, "stall", stall.ID)
}

// SetStatus changes the availability state of a stall
func (r *StallRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.StallStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stalls SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set stall status: %w", err)
	}
	return expectAffected(res, "stall", id)
}

// Delete removes a stall that no booking references and shrinks its event's slot count
func (r *StallRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var eventID uuid.NullUUID
	err = tx.GetContext(ctx, &eventID, `SELECT event_id FROM stalls WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: stall %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("failed to lock stall: %w", err)
	}

	var hasBookings bool
	err = tx.GetContext(ctx, &hasBookings, `SELECT EXISTS(SELECT 1 FROM bookings WHERE stall_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("failed to check stall bookings: %w", err)
	}
	if hasBookings {
		return fmt.Errorf("%w: stall has bookings", models.ErrConflict)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM stalls WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: stall has bookings", models.ErrConflict)
		}
		return fmt.Errorf("failed to delete stall: %w", err)
	}

	if eventID.Valid {
		_, err = tx.ExecContext(ctx, `
			UPDATE events SET total_slots = GREATEST(total_slots - 1, 0), updated_at = NOW()
			WHERE id = $1`, eventID.UUID)
		if err != nil {
			return fmt.Errorf("failed to update event slot count: %w", err)
		}
	}

	return tx.Commit()
}

// ListByOwner returns every stall owned by ownerID
func (r *StallRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error) {
	stalls := []models.Stall{}
	query := `SELECT ` + stallColumns + ` FROM stalls s
		WHERE s.owner_id = $1
		ORDER BY s.event_id NULLS LAST, s.slot_number, s.name`
	if err := r.db.SelectContext(ctx, &stalls, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list owner stalls: %w", err)
	}
	return stalls, nil
}

// ListAll returns every stall for the admin view
func (r *StallRepository) ListAll(ctx context.Context) ([]models.Stall, error) {
	stalls := []models.Stall{}
	query := `SELECT ` + stallColumns + ` FROM stalls s ORDER BY s.created_at DESC`
	if err := r.db.SelectContext(ctx, &stalls, query); err != nil {
		return nil, fmt.Errorf("failed to list stalls: %w", err)
	}
	return stalls, nil
}

// ReleaseEnded returns Booked stalls to Available once no approved booking
// covers today or a later date.
func (r *StallRepository) ReleaseEnded(ctx context.Context, today string) (int64, error) {
	query := `
		UPDATE stalls s
		SET status = 'Available', updated_at = NOW()
		WHERE s.status = 'Booked'
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.stall_id = s.id
			  AND b.status = 'Approved'
			  AND b.end_date >= $1::date
		  )
	`
	res, err := r.db.ExecContext(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("failed to release ended stalls: %w", err)
	}
	return res.RowsAffected()
}

func expectAffected(res sql.Result, entity string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", models.ErrNotFound, entity, id)
	}
	return nil
}
