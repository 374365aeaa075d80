package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/pkg/jwt"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the user persistence used by AccountService
type UserStore interface {
	CreateWithApplication(ctx context.Context, user *models.User, app *models.StallOwnerApplication) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	AdminUpdate(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenStore keeps hashed refresh tokens
type TokenStore interface {
	Store(ctx context.Context, userID uuid.UUID, token string, meta database.TokenMeta, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	UpdateLastUsed(ctx context.Context, token string) error
}

// ApplicationReader looks up a user's latest stall owner application
type ApplicationReader interface {
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error)
}

// SecurityAuditor records account events. Implemented by AuditService.
type SecurityAuditor interface {
	LogRegistration(ctx context.Context, userID uuid.UUID, email, userType string, meta RequestMeta) error
	LogLogin(ctx context.Context, userID *uuid.UUID, email string, success bool, reason string, meta RequestMeta) error
	LogLogout(ctx context.Context, userID uuid.UUID, meta RequestMeta) error
	LogTokenRefresh(ctx context.Context, userID uuid.UUID, success bool, meta RequestMeta) error
	LogAdminAction(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID *uuid.UUID, details map[string]interface{}, meta RequestMeta) error
}

// RegisterResult is returned by Register. Tokens is nil for stall owner
// sign ups, which wait for an admin to approve their application.
type RegisterResult struct {
	User        *models.User                  `json:"user"`
	Tokens      *models.AuthResponse          `json:"tokens,omitempty"`
	Application *models.StallOwnerApplication `json:"application,omitempty"`
}

// AccountService handles sign up, login, token refresh, profiles and admin
// user management
type AccountService struct {
	users        UserStore
	tokens       TokenStore
	applications ApplicationReader
	jwtService   *jwt.Service
	auditor      SecurityAuditor
	bcryptCost   int
	logger       *logrus.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	users UserStore,
	tokens TokenStore,
	applications ApplicationReader,
	jwtService *jwt.Service,
	auditor SecurityAuditor,
	bcryptCost int,
	logger *logrus.Logger,
) *AccountService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		users:        users,
		tokens:       tokens,
		applications: applications,
		jwtService:   jwtService,
		auditor:      auditor,
		bcryptCost:   bcryptCost,
		logger:       logger,
	}
}

// Register creates a customer or stall owner account
func (s *AccountService) Register(ctx context.Context, req *models.RegisterRequest, meta RequestMeta) (*RegisterResult, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		CompanyName:  models.NewNullString(strings.TrimSpace(req.CompanyName)),
		IsActive:     true,
		Roles:        pq.StringArray{},
	}

	var app *models.StallOwnerApplication
	if req.UserType == models.RoleStallOwner {
		app = &models.StallOwnerApplication{
			DocumentURL:     models.NewNullString(strings.TrimSpace(req.DocumentURL)),
			AdditionalNotes: models.NewNullString(strings.TrimSpace(req.AdditionalNotes)),
			Status:          models.ApplicationStatusPending,
		}
	} else {
		user.Roles = pq.StringArray{models.RoleCustomer}
	}

	if err := s.users.CreateWithApplication(ctx, user, app); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"user_type": req.UserType,
	}).Info("User registered")
	s.logAuditError("LogRegistration", s.auditor.LogRegistration(ctx, user.ID, user.Email, req.UserType, meta))

	result := &RegisterResult{User: user, Application: app}
	if app != nil {
		return result, nil
	}

	tokens, err := s.issueTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	result.Tokens = tokens
	return result, nil
}

// Login authenticates a user by email and password and returns tokens
func (s *AccountService) Login(ctx context.Context, email, password string, meta RequestMeta) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logAuditError("LogLogin", s.auditor.LogLogin(ctx, nil, email, false, "unknown email", meta))
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logAuditError("LogLogin", s.auditor.LogLogin(ctx, &user.ID, user.Email, false, "wrong password", meta))
		return nil, models.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logAuditError("LogLogin", s.auditor.LogLogin(ctx, &user.ID, user.Email, false, "inactive account", meta))
		return nil, models.ErrInactiveAccount
	}

	resp, err := s.issueTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}
	s.logAuditError("LogLogin", s.auditor.LogLogin(ctx, &user.ID, user.Email, true, "", meta))
	return resp, nil
}

// Refresh issues a new access token for a stored, unrevoked refresh token
func (s *AccountService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*models.AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", models.ErrInvalidCredentials)
	}

	stored, err := s.tokens.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.Revoked || time.Now().After(stored.ExpiresAt) {
		s.logAuditError("LogTokenRefresh", s.auditor.LogTokenRefresh(ctx, claims.UserID, false, meta))
		return nil, fmt.Errorf("%w: refresh token revoked or expired", models.ErrInvalidCredentials)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, models.ErrInactiveAccount
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if err := s.tokens.UpdateLastUsed(ctx, refreshToken); err != nil {
		s.logger.WithError(err).Warn("Failed to update refresh token last used")
	}
	s.logAuditError("LogTokenRefresh", s.auditor.LogTokenRefresh(ctx, user.ID, true, meta))

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:         user,
	}, nil
}

// Logout revokes the refresh token. Revoking an already revoked token succeeds.
func (s *AccountService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: invalid refresh token", models.ErrInvalidCredentials)
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	s.logAuditError("LogLogout", s.auditor.LogLogout(ctx, claims.UserID, meta))
	return nil
}

// Profile returns the caller's own account
func (s *AccountService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile edits the self-service profile fields
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.CompanyName = models.NewNullString(strings.TrimSpace(req.CompanyName))
	user.Address = models.NewNullString(strings.TrimSpace(req.Address))
	user.Phone = models.NewNullString(strings.TrimSpace(req.Phone))

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// OwnerApplicationStatus returns the caller's latest stall owner application
func (s *AccountService) OwnerApplicationStatus(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error) {
	app, err := s.applications.GetLatestForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("%w: no stall owner application", models.ErrNotFound)
	}
	return app, nil
}

// ListUsers returns every account for the admin console
func (s *AccountService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// CreateUser creates an account on behalf of an admin. A stall owner created
// this way gets an application that is already approved by the admin.
func (s *AccountService) CreateUser(ctx context.Context, admin Caller, req *models.AdminUserRequest, meta RequestMeta) (*models.User, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", models.ErrInvalidRange)
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		CompanyName:  models.NewNullString(strings.TrimSpace(req.CompanyName)),
		Roles:        rolesFor(req.Role),
		IsActive:     req.IsActive,
	}

	var app *models.StallOwnerApplication
	if req.Role == models.RoleStallOwner {
		app = &models.StallOwnerApplication{
			Status:     models.ApplicationStatusApproved,
			ReviewedAt: models.NullTime{NullTime: sql.NullTime{Time: time.Now().UTC(), Valid: true}},
			ReviewedBy: models.NewNullString(admin.Email),
		}
	}

	if err := s.users.CreateWithApplication(ctx, user, app); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"admin_id": admin.ID,
		"user_id":  user.ID,
		"role":     req.Role,
	}).Info("User created by admin")
	s.logAuditError("LogAdminAction", s.auditor.LogAdminAction(ctx, admin.ID, "create_user", "user", &user.ID,
		map[string]interface{}{"email": user.Email, "role": req.Role}, meta))
	return user, nil
}

// UpdateUser replaces the user's role and edits identity and activation.
// Deactivating a user revokes their refresh tokens.
func (s *AccountService) UpdateUser(ctx context.Context, admin Caller, userID uuid.UUID, req *models.AdminUserRequest, meta RequestMeta) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	wasActive := user.IsActive

	user.Email = req.Email
	user.FullName = strings.TrimSpace(req.FullName)
	user.CompanyName = models.NewNullString(strings.TrimSpace(req.CompanyName))
	user.Roles = rolesFor(req.Role)
	user.IsActive = req.IsActive
	user.PasswordHash = ""
	if req.Password != "" {
		if user.PasswordHash, err = s.hashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.users.AdminUpdate(ctx, user); err != nil {
		return nil, err
	}
	user.PasswordHash = ""

	if wasActive && !user.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to revoke tokens of deactivated user")
		}
	}

	s.logAuditError("LogAdminAction", s.auditor.LogAdminAction(ctx, admin.ID, "update_user", "user", &user.ID,
		map[string]interface{}{"role": req.Role, "is_active": req.IsActive}, meta))
	return user, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AccountService) DeleteUser(ctx context.Context, admin Caller, userID uuid.UUID, meta RequestMeta) error {
	if admin.ID == userID {
		return fmt.Errorf("%w: cannot delete your own account", models.ErrForbidden)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"admin_id": admin.ID, "user_id": userID}).Info("User deleted by admin")
	s.logAuditError("LogAdminAction", s.auditor.LogAdminAction(ctx, admin.ID, "delete_user", "user", &userID, nil, meta))
	return nil
}

// issueTokens signs an access/refresh pair and stores the refresh token
func (s *AccountService) issueTokens(ctx context.Context, user *models.User, meta RequestMeta) (*models.AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.jwtService.RefreshTokenExpiry())
	tokenMeta := database.TokenMeta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}
	if err := s.tokens.Store(ctx, user.ID, refreshToken, tokenMeta, expiresAt); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:         user,
	}, nil
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// logAuditError logs audit failures without failing the request
func (s *AccountService) logAuditError(operation string, err error) {
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Warn("Audit log write failed")
	}
}

func rolesFor(role string) pq.StringArray {
	if role == "" {
		return pq.StringArray{}
	}
	return pq.StringArray{role}
}
