package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const paymentColumns = `p.id, p.booking_id, p.amount, p.provider, p.transaction_reference, p.status, p.processed_at`

// PaymentRepository handles payment attempts and the booking/stall
// transitions that accompany them.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// SavePendingAttempt records a gateway order against the booking. An existing
// pending attempt is reused; otherwise a new one is inserted. The booking's
// payment status is reset to Pending in the same transaction.
func (r *PaymentRepository) SavePendingAttempt(ctx context.Context, bookingID uuid.UUID, amount float64, orderRef string) (uuid.UUID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	amount = models.RoundMoney(amount)

	var paymentID uuid.UUID
	err = tx.GetContext(ctx, &paymentID, `
		SELECT id FROM payments
		WHERE booking_id = $1 AND status = 'Pending'
		ORDER BY processed_at DESC
		LIMIT 1
		FOR UPDATE`, bookingID)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE payments
			SET amount = $2, transaction_reference = $3, provider = $4, processed_at = NOW()
			WHERE id = $1`, paymentID, amount, orderRef, models.ProviderRazorpay)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to update pending payment: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		paymentID = uuid.New()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (id, booking_id, amount, provider, transaction_reference, status, processed_at)
			VALUES ($1, $2, $3, $4, $5, 'Pending', NOW())`,
			paymentID, bookingID, amount, models.ProviderRazorpay, orderRef)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert pending payment: %w", err)
		}
	default:
		return uuid.Nil, fmt.Errorf("failed to find pending payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = 'Pending', updated_at = NOW() WHERE id = $1`, bookingID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to update booking payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit payment attempt: %w", err)
	}
	return paymentID, nil
}

type finalizeRow struct {
	StallID       uuid.UUID            `db:"stall_id"`
	Status        models.BookingStatus `db:"status"`
	PaymentStatus models.PaymentStatus `db:"payment_status"`
}

// Finalize applies a verified (or rejected) gateway outcome to the payment,
// its booking and the stall in one transaction. The booking row lock makes a
// second callback for an already completed booking a no-op. Rejected and
// Cancelled bookings, and Pending ones awaiting the owner, are never touched.
func (r *PaymentRepository) Finalize(ctx context.Context, f *models.PaymentFinalization) (*models.ConfirmResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row finalizeRow
	err = tx.GetContext(ctx, &row,
		`SELECT stall_id, status, payment_status FROM bookings WHERE id = $1 FOR UPDATE`, f.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, f.BookingID)
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if row.PaymentStatus == models.PaymentStatusCompleted {
		return &models.ConfirmResult{
			BookingID:        f.BookingID,
			Status:           models.PaymentStatusCompleted,
			AlreadyProcessed: true,
		}, nil
	}
	if err := models.CheckFinalizable(row.Status, f.AutoApprove); err != nil {
		return nil, err
	}
	f.StallID = row.StallID
	if f.ProcessedAt.IsZero() {
		f.ProcessedAt = time.Now()
	}

	err = tx.GetContext(ctx, &f.PaymentID, `
		SELECT id FROM payments
		WHERE booking_id = $1 AND transaction_reference = $2 AND status = 'Pending'
		FOR UPDATE`, f.BookingID, f.OrderRef)
	if errors.Is(err, sql.ErrNoRows) {
		f.PaymentID = uuid.New()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (id, booking_id, amount, provider, transaction_reference, status, processed_at)
			VALUES ($1, $2, $3, $4, $5, 'Pending', $6)`,
			f.PaymentID, f.BookingID, models.RoundMoney(f.Amount), models.ProviderRazorpay, f.OrderRef, f.ProcessedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment for order: %w", err)
	}

	result := &models.ConfirmResult{BookingID: f.BookingID, PaymentID: f.PaymentID}
	if f.Success {
		err = r.applySuccess(ctx, tx, f)
		result.Status = models.PaymentStatusCompleted
	} else {
		err = r.applyFailure(ctx, tx, f)
		result.Status = models.PaymentStatusFailed
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment outcome: %w", err)
	}
	return result, nil
}

func (r *PaymentRepository) applySuccess(ctx context.Context, tx *sqlx.Tx, f *models.PaymentFinalization) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'Completed', transaction_reference = $2, provider = $3, processed_at = $4
		WHERE id = $1`,
		f.PaymentID, f.PaymentRef, models.CompletedProvider(f.OrderRef), f.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: gateway payment %s already recorded", models.ErrConflict, f.PaymentRef)
		}
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET payment_status = 'Completed', status = 'Approved', updated_at = NOW()
		WHERE id = $1`, f.BookingID)
	if err != nil {
		return fmt.Errorf("failed to approve booking: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE stalls SET status = 'Booked', updated_at = NOW() WHERE id = $1`, f.StallID)
	if err != nil {
		return fmt.Errorf("failed to mark stall booked: %w", err)
	}
	return nil
}

func (r *PaymentRepository) applyFailure(ctx context.Context, tx *sqlx.Tx, f *models.PaymentFinalization) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'Failed', processed_at = $2 WHERE id = $1`, f.PaymentID, f.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET payment_status = 'Failed', status = 'Cancelled', updated_at = NOW()
		WHERE id = $1`, f.BookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE stalls SET status = 'Available', updated_at = NOW() WHERE id = $1`, f.StallID)
	if err != nil {
		return fmt.Errorf("failed to release stall: %w", err)
	}
	return nil
}

// FindBookingByOrderRef resolves the booking that a gateway order was created for
func (r *PaymentRepository) FindBookingByOrderRef(ctx context.Context, orderRef string) (uuid.UUID, error) {
	var bookingID uuid.UUID
	err := r.db.GetContext(ctx, &bookingID, `
		SELECT booking_id FROM payments
		WHERE transaction_reference = $1 OR provider = $2
		ORDER BY processed_at DESC
		LIMIT 1`, orderRef, models.CompletedProvider(orderRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderRef)
		}
		return uuid.Nil, fmt.Errorf("failed to find order: %w", err)
	}
	return bookingID, nil
}

// ListByBooking returns a booking's payment attempts, newest first
func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.booking_id = $1 ORDER BY p.processed_at DESC`
	if err := r.db.SelectContext(ctx, &payments, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ListReport returns every payment with its booking, stall and customer, newest first
func (r *PaymentRepository) ListReport(ctx context.Context) ([]models.PaymentReportItem, error) {
	items := []models.PaymentReportItem{}
	query := `
		SELECT ` + paymentColumns + `,
			s.name AS stall_name, u.full_name AS customer_name, u.email AS customer_email,
			b.start_date, b.end_date
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN stalls s ON s.id = b.stall_id
		JOIN users u ON u.id = b.customer_id
		ORDER BY p.processed_at DESC
	`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("failed to list payment report: %w", err)
	}
	return items, nil
}
