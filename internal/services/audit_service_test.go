package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditMock(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.PostgresDB{DB: sqlx.NewDb(db, "postgres")}, mock
}

func TestAuditService_LogLogin(t *testing.T) {
	ctx := context.Background()
	meta := RequestMeta{IPAddress: "203.0.113.9", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0"}

	t.Run("Success", func(t *testing.T) {
		db, mock := newAuditMock(t)
		svc := NewAuditService(db, true)
		userID := uuid.New()

		mock.ExpectExec(`INSERT INTO audit_logs`).
			WithArgs(userID.String(), AuditActionLoginSuccess, sqlmock.AnyArg(), userID.String(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, svc.LogLogin(ctx, &userID, "jane@example.com", true, "", meta))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failed Unknown User", func(t *testing.T) {
		db, mock := newAuditMock(t)
		svc := NewAuditService(db, true)

		mock.ExpectExec(`INSERT INTO audit_logs`).
			WithArgs(sqlmock.AnyArg(), AuditActionLoginFailed, sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, svc.LogLogin(ctx, nil, "ghost@example.com", false, "unknown email", meta))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditService_Disabled(t *testing.T) {
	db, mock := newAuditMock(t)
	svc := NewAuditService(db, false)

	require.NoError(t, svc.LogLogout(context.Background(), uuid.New(), RequestMeta{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_DatabaseError(t *testing.T) {
	db, mock := newAuditMock(t)
	svc := NewAuditService(db, true)

	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(assert.AnError)

	err := svc.LogAdminAction(context.Background(), uuid.New(), "delete_user", "user", nil, nil, RequestMeta{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_CleanupOldAuditLogs(t *testing.T) {
	db, mock := newAuditMock(t)
	svc := NewAuditService(db, true)

	mock.ExpectExec(`DELETE FROM audit_logs WHERE created_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := svc.CleanupOldAuditLogs(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
