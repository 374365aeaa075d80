package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Role names carried in JWT claims and the users.roles column
const (
	RoleAdmin      = "admin"
	RoleStallOwner = "stall_owner"
	RoleCustomer   = "customer"
)

// NullString wraps sql.NullString to provide proper JSON marshaling
type NullString struct {
	sql.NullString
}

// NewNullString returns a valid NullString for non-empty input
func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

// MarshalJSON implements json.Marshaler
func (ns NullString) MarshalJSON() ([]byte, error) {
	if ns.Valid {
		return json.Marshal(ns.String)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (ns *NullString) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != nil {
		ns.Valid = true
		ns.String = *s
	} else {
		ns.Valid = false
	}
	return nil
}

// NullTime wraps sql.NullTime to provide proper JSON marshaling
type NullTime struct {
	sql.NullTime
}

// MarshalJSON implements json.Marshaler
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if nt.Valid {
		return json.Marshal(nt.Time)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (nt *NullTime) UnmarshalJSON(data []byte) error {
	var t *time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	if t != nil {
		nt.Valid = true
		nt.Time = *t
	} else {
		nt.Valid = false
	}
	return nil
}

// User represents a marketplace account (customer, stall owner or admin)
type User struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	FullName     string         `json:"full_name" db:"full_name"`
	CompanyName  NullString     `json:"company_name,omitempty" db:"company_name"`
	Address      NullString     `json:"address,omitempty" db:"address"`
	Phone        NullString     `json:"phone,omitempty" db:"phone"`
	Roles        pq.StringArray `json:"roles" db:"roles"`
	IsActive     bool           `json:"is_active" db:"is_active"`
	LastLoginAt  NullTime       `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user carries the given role
func (u *User) HasRole(role string) bool {
	return HasRole(u.Roles, role)
}

// HasRole reports whether role appears in roles
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RefreshToken represents a JWT refresh token
type RefreshToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"` // Never expose
	DeviceID   NullString `json:"device_id,omitempty" db:"device_id"`
	DeviceType NullString `json:"device_type,omitempty" db:"device_type"`
	IPAddress  NullString `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  NullString `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt NullTime   `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  NullTime   `json:"revoked_at,omitempty" db:"revoked_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         int64         `json:"id" db:"id"`
	UserID     uuid.NullUUID `json:"user_id,omitempty" db:"user_id"`
	Action     string        `json:"action" db:"action"`
	EntityType NullString    `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   uuid.NullUUID `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  NullString    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  NullString    `json:"user_agent,omitempty" db:"user_agent"`
	Details    NullString    `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// RegisterRequest is the payload for self-service sign up
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,password"`
	FullName        string `json:"full_name" binding:"required,max=128"`
	CompanyName     string `json:"company_name" binding:"max=128"`
	UserType        string `json:"user_type" binding:"required,oneof=customer stall_owner"`
	DocumentURL     string `json:"document_url" binding:"omitempty,url,max=512"`
	AdditionalNotes string `json:"additional_notes" binding:"max=1000"`
}

// LoginRequest is the payload for email/password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest carries a refresh token for refresh and logout
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest is the payload for editing one's own profile
type UpdateProfileRequest struct {
	FullName    string `json:"full_name" binding:"required,max=128"`
	CompanyName string `json:"company_name" binding:"max=128"`
	Address     string `json:"address" binding:"max=256"`
	Phone       string `json:"phone" binding:"omitempty,max=32,phone"`
}

// AdminUserRequest is the payload for admin user create/update
type AdminUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"omitempty,password"`
	FullName    string `json:"full_name" binding:"required,max=128"`
	CompanyName string `json:"company_name" binding:"max=128"`
	Role        string `json:"role" binding:"omitempty,oneof=admin stall_owner customer"`
	IsActive    bool   `json:"is_active"`
}

// AuthResponse is returned after a successful login or token refresh
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}
