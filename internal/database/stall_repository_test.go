package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteStall(t *testing.T) {
	ctx := context.Background()

	t.Run("Decrements Event Slots", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStallRepository(db)
		stallID, eventID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT event_id FROM stalls`).
			WithArgs(stallID).
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(eventID.String()))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(stallID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`DELETE FROM stalls`).WithArgs(stallID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE events SET total_slots`).WithArgs(eventID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(ctx, stallID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Flat Stall", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStallRepository(db)
		stallID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT event_id FROM stalls`).
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(nil))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`DELETE FROM stalls`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(ctx, stallID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Has Bookings", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStallRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT event_id FROM stalls`).
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(nil))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), models.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Foreign Key Race", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStallRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT event_id FROM stalls`).
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(nil))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`DELETE FROM stalls`).WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), models.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetStallStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStallRepository(db)
	stallID := uuid.New()

	mock.ExpectExec(`UPDATE stalls SET status`).
		WithArgs(stallID, models.StallStatusBooked).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetStatus(context.Background(), stallID, models.StallStatusBooked), models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseEndedStalls(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStallRepository(db)

	mock.ExpectExec(`SET status = 'Available'`).
		WithArgs("2030-01-10").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ReleaseEnded(context.Background(), "2030-01-10")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
