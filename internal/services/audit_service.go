package services

import (
	"context"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/utils"
	"github.com/google/uuid"
)

// Audit actions written to audit_logs
const (
	AuditActionRegister           = "register"
	AuditActionLoginSuccess       = "login"
	AuditActionLoginFailed        = "login_failed"
	AuditActionLogout             = "logout"
	AuditActionTokenRefresh       = "token_refresh_success"
	AuditActionTokenRefreshFailed = "token_refresh_failed"
	AuditActionSuspicious         = "suspicious_activity"
)

// AuditService writes security and admin events to audit_logs
type AuditService struct {
	db      database.DB
	enabled bool
}

// NewAuditService creates a new audit service. A disabled service accepts
// every call and writes nothing.
func NewAuditService(db database.DB, enabled bool) *AuditService {
	return &AuditService{db: db, enabled: enabled}
}

// AuditEvent represents a security event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID // nil before authentication
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// LogRegistration logs a new account sign up
func (s *AuditService) LogRegistration(ctx context.Context, userID uuid.UUID, email, userType string, meta RequestMeta) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     AuditActionRegister,
		EntityType: "user",
		EntityID:   &userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details: map[string]interface{}{
			"email":     email,
			"user_type": userType,
		},
	})
}

// LogLogin logs a login attempt. userID is nil when the email is unknown.
func (s *AuditService) LogLogin(ctx context.Context, userID *uuid.UUID, email string, success bool, reason string, meta RequestMeta) error {
	details := map[string]interface{}{
		"email":   email,
		"success": success,
	}
	action := AuditActionLoginSuccess
	if !success {
		action = AuditActionLoginFailed
		if reason != "" {
			details["failure_reason"] = reason
		}
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogLogout logs a logout event
func (s *AuditService) LogLogout(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     AuditActionLogout,
		EntityType: "user",
		EntityID:   &userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
}

// LogTokenRefresh logs a refresh token usage event
func (s *AuditService) LogTokenRefresh(ctx context.Context, userID uuid.UUID, success bool, meta RequestMeta) error {
	action := AuditActionTokenRefresh
	if !success {
		action = AuditActionTokenRefreshFailed
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     action,
		EntityType: "token",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    map[string]interface{}{"success": success},
	})
}

// LogAdminAction logs a change made through the admin surface
func (s *AuditService) LogAdminAction(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID *uuid.UUID, details map[string]interface{}, meta RequestMeta) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &adminID,
		Action:     "admin_" + action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogSuspiciousActivity logs suspicious security events such as forged
// webhook signatures
func (s *AuditService) LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, activity string, details map[string]interface{}, meta RequestMeta) error {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["activity"] = activity

	return s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     AuditActionSuspicious,
		EntityType: "security",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// logEvent is the internal method that writes to the audit_logs table
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) error {
	if !s.enabled {
		return nil
	}

	details := models.JSONB{}
	for k, v := range event.Details {
		details[k] = v
	}
	if event.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(event.UserAgent).Map()
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := s.db.ExecContext(ctx, query,
		event.UserID,
		event.Action,
		models.NewNullString(event.EntityType),
		event.EntityID,
		models.NewNullString(event.IPAddress),
		models.NewNullString(event.UserAgent),
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
