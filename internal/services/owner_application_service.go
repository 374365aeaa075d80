package services

import (
	"context"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ApplicationStore is the stall owner application persistence
type ApplicationStore interface {
	List(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error)
	Review(ctx context.Context, appID uuid.UUID, decision models.ApplicationStatus, reviewer string) error
}

// OwnerApplicationService lets admins review stall owner applications
type OwnerApplicationService struct {
	applications ApplicationStore
	auditor      SecurityAuditor
	logger       *logrus.Logger
}

// NewOwnerApplicationService creates a new OwnerApplicationService
func NewOwnerApplicationService(applications ApplicationStore, auditor SecurityAuditor, logger *logrus.Logger) *OwnerApplicationService {
	return &OwnerApplicationService{applications: applications, auditor: auditor, logger: logger}
}

// ListApplications returns applications, optionally filtered by status
func (s *OwnerApplicationService) ListApplications(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error) {
	return s.applications.List(ctx, status)
}

// Approve accepts a pending application and grants the stall owner role
func (s *OwnerApplicationService) Approve(ctx context.Context, admin Caller, appID uuid.UUID, meta RequestMeta) error {
	return s.review(ctx, admin, appID, models.ApplicationStatusApproved, meta)
}

// Reject declines a pending application
func (s *OwnerApplicationService) Reject(ctx context.Context, admin Caller, appID uuid.UUID, meta RequestMeta) error {
	return s.review(ctx, admin, appID, models.ApplicationStatusRejected, meta)
}

func (s *OwnerApplicationService) review(ctx context.Context, admin Caller, appID uuid.UUID, decision models.ApplicationStatus, meta RequestMeta) error {
	if err := s.applications.Review(ctx, appID, decision, admin.Email); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"application_id": appID,
		"decision":       decision,
		"reviewer":       admin.Email,
	}).Info("Stall owner application reviewed")

	err := s.auditor.LogAdminAction(ctx, admin.ID, "review_owner_application", "stall_owner_application", &appID,
		map[string]interface{}{"decision": string(decision)}, meta)
	if err != nil {
		s.logger.WithError(err).Warn("Audit log write failed")
	}
	return nil
}
