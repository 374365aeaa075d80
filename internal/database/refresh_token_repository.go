package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{
		db: db,
	}
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenMeta describes the client a refresh token was issued to
type TokenMeta struct {
	DeviceID   string
	DeviceType string
	IPAddress  string
	UserAgent  string
}

// Store saves the hash of a refresh token
func (r *RefreshTokenRepository) Store(ctx context.Context, userID uuid.UUID, token string, meta TokenMeta, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (
			user_id, token_hash, device_id, device_type,
			ip_address, user_agent, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		userID,
		hashToken(token),
		models.NewNullString(meta.DeviceID),
		models.NewNullString(meta.DeviceType),
		models.NewNullString(meta.IPAddress),
		models.NewNullString(meta.UserAgent),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get retrieves a refresh token by its hash; nil when unknown
func (r *RefreshTokenRepository) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	query := `
		SELECT id, user_id, token_hash, device_id, device_type,
		       ip_address, user_agent, created_at, expires_at,
		       last_used_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	if err := r.db.GetContext(ctx, &refreshToken, query, hashToken(token)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &refreshToken, nil
}

// Revoke revokes a specific refresh token
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE,
		    revoked_at = $1
		WHERE token_hash = $2 AND revoked = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), hashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: token not found or already revoked", models.ErrNotFound)
	}
	return nil
}

// RevokeAllForUser revokes every active refresh token of a user
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE,
		    revoked_at = $1
		WHERE user_id = $2 AND revoked = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), userID); err != nil {
		return fmt.Errorf("failed to revoke all user tokens: %w", err)
	}
	return nil
}

// UpdateLastUsed updates the last_used_at timestamp for a token
func (r *RefreshTokenRepository) UpdateLastUsed(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET last_used_at = $1 WHERE token_hash = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), hashToken(token)); err != nil {
		return fmt.Errorf("failed to update last used timestamp: %w", err)
	}
	return nil
}

// CleanupExpired removes expired refresh tokens
func (r *RefreshTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// CleanupRevoked removes revoked tokens older than the given duration
func (r *RefreshTokenRepository) CleanupRevoked(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE revoked = TRUE AND revoked_at < $1`, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup revoked tokens: %w", err)
	}
	return result.RowsAffected()
}
