package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

const bookingWithStallSelect = `
	SELECT b.id, b.stall_id, b.customer_id, b.start_date, b.end_date,
		b.status, b.payment_status, b.created_at, b.updated_at,
		s.name AS stall_name, s.owner_id AS stall_owner_id, s.rent_per_day,
		u.full_name AS customer_name, u.email AS customer_email,
		EXISTS (SELECT 1 FROM feedback f WHERE f.booking_id = b.id) AS has_feedback
	FROM bookings b
	JOIN stalls s ON s.id = b.stall_id
	JOIN users u ON u.id = b.customer_id
`

// overlapQuery applies the inclusive range test against every booking that
// still holds its dates.
const overlapQuery = `
	SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE stall_id = $1
		  AND status NOT IN ('Rejected', 'Cancelled')
		  AND start_date <= $3
		  AND end_date >= $2
	)
`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts the booking after locking its stall and checking for an
// overlapping active booking. The stall is put into Maintenance in the same
// transaction.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stallID uuid.UUID
	err = tx.GetContext(ctx, &stallID, `SELECT id FROM stalls WHERE id = $1 FOR UPDATE`, booking.StallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: stall %s", models.ErrNotFound, booking.StallID)
		}
		return fmt.Errorf("failed to lock stall: %w", err)
	}

	var overlaps bool
	err = tx.GetContext(ctx, &overlaps, overlapQuery, booking.StallID, booking.StartDate, booking.EndDate)
	if err != nil {
		return fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	if overlaps {
		return models.ErrOverlap
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO bookings (
			id, stall_id, customer_id, start_date, end_date, status, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		booking.ID, booking.StallID, booking.CustomerID, booking.StartDate, booking.EndDate,
		booking.Status, booking.PaymentStatus,
	).Scan(&booking.CreatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return models.ErrOverlap
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE stalls SET status = $2, updated_at = NOW() WHERE id = $1`,
		booking.StallID, models.StallStatusMaintenance)
	if err != nil {
		return fmt.Errorf("failed to hold stall: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isExclusionViolation(err) {
			return models.ErrOverlap
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// GetWithStall retrieves a booking joined with its stall and customer
func (r *BookingRepository) GetWithStall(ctx context.Context, id uuid.UUID) (*models.BookingWithStall, error) {
	var booking models.BookingWithStall
	if err := r.db.GetContext(ctx, &booking, bookingWithStallSelect+` WHERE b.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListForCustomer returns the customer's bookings, newest first
func (r *BookingRepository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingWithStall, error) {
	bookings := []models.BookingWithStall{}
	query := bookingWithStallSelect + ` WHERE b.customer_id = $1 ORDER BY b.created_at DESC`
	if err := r.db.SelectContext(ctx, &bookings, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to list customer bookings: %w", err)
	}
	return bookings, nil
}

// ListForOwner returns bookings on the owner's stalls, newest first
func (r *BookingRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingWithStall, error) {
	bookings := []models.BookingWithStall{}
	query := bookingWithStallSelect + ` WHERE s.owner_id = $1 ORDER BY b.created_at DESC`
	if err := r.db.SelectContext(ctx, &bookings, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list owner bookings: %w", err)
	}
	return bookings, nil
}

// ListAwaitingPaymentForEvent returns live bookings on an event whose payment is still pending
func (r *BookingRepository) ListAwaitingPaymentForEvent(ctx context.Context, eventID uuid.UUID) ([]models.BookingWithStall, error) {
	bookings := []models.BookingWithStall{}
	query := bookingWithStallSelect + `
		WHERE s.event_id = $1
		  AND b.payment_status = 'Pending'
		  AND b.status NOT IN ('Rejected', 'Cancelled')
		ORDER BY b.start_date`
	if err := r.db.SelectContext(ctx, &bookings, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return bookings, nil
}

type decisionRow struct {
	Status  models.BookingStatus `db:"status"`
	StallID uuid.UUID            `db:"stall_id"`
	OwnerID uuid.UUID            `db:"owner_id"`
}

// Decide applies an owner's approve or reject decision to a pending booking
// and moves the stall to Booked or Available accordingly.
func (r *BookingRepository) Decide(ctx context.Context, bookingID, ownerID uuid.UUID, decision models.BookingStatus) error {
	var stallStatus models.StallStatus
	switch decision {
	case models.BookingStatusApproved:
		stallStatus = models.StallStatusBooked
	case models.BookingStatusRejected:
		stallStatus = models.StallStatusAvailable
	default:
		return fmt.Errorf("unsupported decision %q", decision)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row decisionRow
	err = tx.GetContext(ctx, &row, `
		SELECT b.status, b.stall_id, s.owner_id
		FROM bookings b
		JOIN stalls s ON s.id = b.stall_id
		WHERE b.id = $1
		FOR UPDATE OF b`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID)
		}
		return fmt.Errorf("failed to lock booking: %w", err)
	}
	if row.OwnerID != ownerID {
		return fmt.Errorf("%w: booking belongs to another owner", models.ErrForbidden)
	}
	if row.Status != models.BookingStatusPending {
		return fmt.Errorf("%w: booking is %s", models.ErrIneligible, row.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`, bookingID, decision)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE stalls SET status = $2, updated_at = NOW() WHERE id = $1`, row.StallID, stallStatus)
	if err != nil {
		return fmt.Errorf("failed to update stall: %w", err)
	}

	return tx.Commit()
}
