package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking() *models.Booking {
	return &models.Booking{
		StallID:       uuid.New(),
		CustomerID:    uuid.New(),
		StartDate:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC),
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
}

func TestBookingCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := newTestBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM stalls WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.StallID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(b.StallID.String()))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(b.StallID, b.StartDate, b.EndDate).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs(sqlmock.AnyArg(), b.StallID, b.CustomerID, b.StartDate, b.EndDate,
				models.BookingStatusPending, models.PaymentStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectExec(`UPDATE stalls SET status`).
			WithArgs(b.StallID, models.StallStatusMaintenance).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(ctx, b))
		assert.NotEqual(t, uuid.Nil, b.ID)
		assert.False(t, b.CreatedAt.IsZero())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stall Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := newTestBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM stalls WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.StallID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Create(ctx, b), models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Overlapping Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := newTestBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(b.StallID.String()))
		mock.ExpectQuery(`status NOT IN \('Rejected', 'Cancelled'\)`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Create(ctx, b), models.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exclusion Constraint Backstop", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := newTestBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(b.StallID.String()))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23P01"})
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Create(ctx, b), models.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingDecide(t *testing.T) {
	ctx := context.Background()
	decisionColumns := []string{"status", "stall_id", "owner_id"}

	t.Run("Approve Books Stall", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		bookingID, stallID, ownerID := uuid.New(), uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE OF b`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(decisionColumns).
				AddRow("Pending", stallID.String(), ownerID.String()))
		mock.ExpectExec(`UPDATE bookings SET status`).
			WithArgs(bookingID, models.BookingStatusApproved).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE stalls SET status`).
			WithArgs(stallID, models.StallStatusBooked).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Decide(ctx, bookingID, ownerID, models.BookingStatusApproved))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reject Frees Stall", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		bookingID, stallID, ownerID := uuid.New(), uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE OF b`).
			WillReturnRows(sqlmock.NewRows(decisionColumns).
				AddRow("Pending", stallID.String(), ownerID.String()))
		mock.ExpectExec(`UPDATE bookings SET status`).
			WithArgs(bookingID, models.BookingStatusRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE stalls SET status`).
			WithArgs(stallID, models.StallStatusAvailable).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Decide(ctx, bookingID, ownerID, models.BookingStatusRejected))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Other Owner Forbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE OF b`).
			WillReturnRows(sqlmock.NewRows(decisionColumns).
				AddRow("Pending", uuid.NewString(), uuid.NewString()))
		mock.ExpectRollback()

		err := repo.Decide(ctx, uuid.New(), uuid.New(), models.BookingStatusApproved)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Decided", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		ownerID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE OF b`).
			WillReturnRows(sqlmock.NewRows(decisionColumns).
				AddRow("Rejected", uuid.NewString(), ownerID.String()))
		mock.ExpectRollback()

		err := repo.Decide(ctx, uuid.New(), ownerID, models.BookingStatusApproved)
		assert.ErrorIs(t, err, models.ErrIneligible)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unsupported Decision", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		err := repo.Decide(ctx, uuid.New(), uuid.New(), models.BookingStatusCancelled)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingGetWithStall(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	bookingID := uuid.New()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM bookings b`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "stall_id", "customer_id", "start_date", "end_date", "status", "payment_status",
			"stall_name", "stall_owner_id", "rent_per_day", "customer_name", "customer_email", "has_feedback",
		}).AddRow(
			bookingID.String(), uuid.NewString(), uuid.NewString(), start, end, "Approved", "Pending",
			"Hall A · Slot 1", uuid.NewString(), 100.0, "Jane", "jane@example.com", false,
		))

	b, err := repo.GetWithStall(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, b.Status)
	assert.Equal(t, 300.0, b.Amount())

	assert.NoError(t, mock.ExpectationsWereMet())
}
