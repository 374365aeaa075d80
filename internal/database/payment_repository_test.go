package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePendingAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("Inserts New Attempt", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM payments`).
			WithArgs(bookingID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO payments`).
			WithArgs(sqlmock.AnyArg(), bookingID, 300.0, models.ProviderRazorpay, "order_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings SET payment_status = 'Pending'`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		paymentID, err := repo.SavePendingAttempt(ctx, bookingID, 300, "order_1")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, paymentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reuses Pending Attempt", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID, existing := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM payments`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))
		mock.ExpectExec(`UPDATE payments`).
			WithArgs(existing, 150.5, "order_2", models.ProviderRazorpay).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings SET payment_status = 'Pending'`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		paymentID, err := repo.SavePendingAttempt(ctx, bookingID, 150.5, "order_2")
		require.NoError(t, err)
		assert.Equal(t, existing, paymentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFinalizePayment(t *testing.T) {
	ctx := context.Background()
	lockColumns := []string{"stall_id", "status", "payment_status"}

	t.Run("Already Completed Is A No-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(uuid.NewString(), "Approved", "Completed"))
		mock.ExpectRollback()

		res, err := repo.Finalize(ctx, &models.PaymentFinalization{BookingID: bookingID, Success: true})
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, models.PaymentStatusCompleted, res.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success Books Stall", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID, stallID, paymentID := uuid.New(), uuid.New(), uuid.New()
		processedAt := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(stallID.String(), "Approved", "Pending"))
		mock.ExpectQuery(`SELECT id FROM payments`).
			WithArgs(bookingID, "order_1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(paymentID.String()))
		mock.ExpectExec(`SET status = 'Completed'`).
			WithArgs(paymentID, "pay_1", "Razorpay (Order: order_1)", processedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings SET payment_status = 'Completed', status = 'Approved'`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE stalls SET status = 'Booked'`).
			WithArgs(stallID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.Finalize(ctx, &models.PaymentFinalization{
			BookingID:   bookingID,
			OrderRef:    "order_1",
			PaymentRef:  "pay_1",
			Amount:      300,
			Success:     true,
			ProcessedAt: processedAt,
		})
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed)
		assert.Equal(t, paymentID, res.PaymentID)
		assert.Equal(t, models.PaymentStatusCompleted, res.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure Cancels Booking And Frees Stall", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID, stallID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(stallID.String(), "Approved", "Pending"))
		mock.ExpectQuery(`SELECT id FROM payments`).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO payments`).
			WithArgs(sqlmock.AnyArg(), bookingID, 300.0, models.ProviderRazorpay, "order_1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE payments SET status = 'Failed'`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`SET payment_status = 'Failed', status = 'Cancelled'`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE stalls SET status = 'Available'`).
			WithArgs(stallID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.Finalize(ctx, &models.PaymentFinalization{
			BookingID: bookingID,
			OrderRef:  "order_1",
			Amount:    300,
		})
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusFailed, res.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Voided Or Undecided Booking Is Left Alone", func(t *testing.T) {
		tests := []struct {
			name    string
			status  string
			payment string
			success bool
		}{
			{"Rejected With Bad Signature", "Rejected", "Pending", false},
			{"Cancelled With Late Capture", "Cancelled", "Failed", true},
			{"Pending Awaiting Owner", "Pending", "Pending", true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				db, mock := newMockDB(t)
				repo := NewPaymentRepository(db)
				bookingID := uuid.New()

				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT stall_id, status, payment_status FROM bookings WHERE id = \$1 FOR UPDATE`).
					WithArgs(bookingID).
					WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(uuid.NewString(), tt.status, tt.payment))
				mock.ExpectRollback()

				res, err := repo.Finalize(ctx, &models.PaymentFinalization{
					BookingID:  bookingID,
					OrderRef:   "order_1",
					PaymentRef: "pay_1",
					Amount:     300,
					Success:    tt.success,
				})
				assert.ErrorIs(t, err, models.ErrIneligible)
				assert.Nil(t, res)
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	})

	t.Run("Pending Is Payable Under Auto Approve", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)
		bookingID, stallID, paymentID := uuid.New(), uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(stallID.String(), "Pending", "Pending"))
		mock.ExpectQuery(`SELECT id FROM payments`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(paymentID.String()))
		mock.ExpectExec(`SET status = 'Completed'`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`status = 'Approved'`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE stalls SET status = 'Booked'`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.Finalize(ctx, &models.PaymentFinalization{
			BookingID:   bookingID,
			OrderRef:    "order_1",
			PaymentRef:  "pay_1",
			Success:     true,
			AutoApprove: true,
		})
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, res.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.Finalize(ctx, &models.PaymentFinalization{BookingID: uuid.New()})
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindBookingByOrderRef(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	bookingID := uuid.New()

	mock.ExpectQuery(`SELECT booking_id FROM payments`).
		WithArgs("order_9", "Razorpay (Order: order_9)").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}).AddRow(bookingID.String()))

	got, err := repo.FindBookingByOrderRef(context.Background(), "order_9")
	require.NoError(t, err)
	assert.Equal(t, bookingID, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
