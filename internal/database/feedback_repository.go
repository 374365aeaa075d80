package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

// FeedbackRepository handles database operations for the feedback table
type FeedbackRepository struct {
	db DB
}

// NewFeedbackRepository creates a new FeedbackRepository
func NewFeedbackRepository(db DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts feedback; a second row for the same booking is AlreadyExists
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback (id, booking_id, rating, comments, submitted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		fb.ID, fb.BookingID, fb.Rating, fb.Comments, fb.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: feedback for booking %s", models.ErrAlreadyExists, fb.BookingID)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// GetByBooking returns the booking's feedback or nil when none was left
func (r *FeedbackRepository) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Feedback, error) {
	var fb models.Feedback
	err := r.db.GetContext(ctx, &fb, `
		SELECT id, booking_id, rating, comments, submitted_at
		FROM feedback WHERE booking_id = $1`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &fb, nil
}

// ListForOwner returns feedback left on the owner's stalls, newest first.
// A non-positive limit returns everything.
func (r *FeedbackRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error) {
	query := `
		SELECT f.id, f.booking_id, f.rating, f.comments, f.submitted_at,
			s.id AS stall_id, s.name AS stall_name, u.full_name AS customer_name
		FROM feedback f
		JOIN bookings b ON b.id = f.booking_id
		JOIN stalls s ON s.id = b.stall_id
		JOIN users u ON u.id = b.customer_id
		WHERE s.owner_id = $1
		ORDER BY f.submitted_at DESC
	`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	items := []models.FeedbackListItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return items, nil
}
