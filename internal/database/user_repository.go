package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, email, password_hash, full_name, company_name, address, phone,
	roles, is_active, last_login_at, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create inserts a new user. Emails are stored lower-cased and must be unique.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.CreateWithApplication(ctx, user, nil)
}

// CreateWithApplication inserts the user and, when app is non-nil, a stall
// owner application for them in the same transaction.
func (r *UserRepository) CreateWithApplication(ctx context.Context, user *models.User, app *models.StallOwnerApplication) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = NormalizeEmail(user.Email)
	if user.Roles == nil {
		user.Roles = pq.StringArray{}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, full_name, company_name, address, phone,
			roles, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		user.CompanyName, user.Address, user.Phone,
		pq.Array([]string(user.Roles)), user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s is already registered", models.ErrAlreadyExists, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if app != nil {
		if app.ID == uuid.Nil {
			app.ID = uuid.New()
		}
		app.UserID = user.ID
		app.SubmittedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stall_owner_applications (
				id, user_id, document_url, additional_notes, status, submitted_at, reviewed_at, reviewed_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			app.ID, app.UserID, app.DocumentURL, app.AdditionalNotes, app.Status,
			app.SubmittedAt, app.ReviewedAt, app.ReviewedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to create owner application: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// List returns all users, newest first
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile updates the self-editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = $2, company_name = $3, address = $4, phone = $5, updated_at = NOW()
		WHERE id = $1`,
		user.ID, user.FullName, user.CompanyName, user.Address, user.Phone)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectAffected(res, "user", user.ID)
}

// AdminUpdate overwrites identity, roles and activation. An empty password
// hash leaves the stored hash untouched.
func (r *UserRepository) AdminUpdate(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, full_name = $3, company_name = $4, roles = $5, is_active = $6,
			password_hash = COALESCE(NULLIF($7::text, ''), password_hash), updated_at = NOW()
		WHERE id = $1`,
		user.ID, user.Email, user.FullName, user.CompanyName,
		pq.Array([]string(user.Roles)), user.IsActive, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s is already registered", models.ErrAlreadyExists, user.Email)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectAffected(res, "user", user.ID)
}

// UpdateLastLogin stamps the last successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Delete removes a user. Users still referenced by stalls or bookings are a Conflict.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user owns stalls or bookings", models.ErrConflict)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(res, "user", id)
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
