package handlers

import (
	"context"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserAdminAPI is implemented by services.AccountService
type UserAdminAPI interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, admin services.Caller, req *models.AdminUserRequest, meta services.RequestMeta) (*models.User, error)
	UpdateUser(ctx context.Context, admin services.Caller, userID uuid.UUID, req *models.AdminUserRequest, meta services.RequestMeta) (*models.User, error)
	DeleteUser(ctx context.Context, admin services.Caller, userID uuid.UUID, meta services.RequestMeta) error
}

// ApplicationReviewAPI is implemented by services.OwnerApplicationService
type ApplicationReviewAPI interface {
	ListApplications(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error)
	Approve(ctx context.Context, admin services.Caller, appID uuid.UUID, meta services.RequestMeta) error
	Reject(ctx context.Context, admin services.Caller, appID uuid.UUID, meta services.RequestMeta) error
}

// AdminReportAPI is implemented by services.ReportService
type AdminReportAPI interface {
	AdminDashboard(ctx context.Context) (*models.AdminDashboard, error)
	PaymentReports(ctx context.Context) ([]models.PaymentReportItem, error)
}

// AdminHandler handles admin-only HTTP requests
type AdminHandler struct {
	users        UserAdminAPI
	applications ApplicationReviewAPI
	reports      AdminReportAPI
	logger       *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(users UserAdminAPI, applications ApplicationReviewAPI, reports AdminReportAPI, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		users:        users,
		applications: applications,
		reports:      reports,
		logger:       logger,
	}
}

// Dashboard handles GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	dash, err := h.reports.AdminDashboard(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// ListPayments handles GET /api/v1/admin/payments
func (h *AdminHandler) ListPayments(c *gin.Context) {
	payments, err := h.reports.PaymentReports(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// CreateUser handles POST /api/v1/admin/users
// @Summary Create an account as an administrator
// @Description Stall owners created here are approved immediately
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.AdminUserRequest true "User"
// @Success 201 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req models.AdminUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), caller(c), &req, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PUT /api/v1/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.AdminUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateUser(c.Request.Context(), caller(c), userID, &req, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.users.DeleteUser(c.Request.Context(), caller(c), userID, requestMeta(c)); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "User deleted"})
}

// ListOwnerApplications handles GET /api/v1/admin/owner-applications?status=Pending
func (h *AdminHandler) ListOwnerApplications(c *gin.Context) {
	status := models.ApplicationStatus(c.Query("status"))
	switch status {
	case "", models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "status must be Pending, Approved or Rejected",
			Code:    "INVALID_STATUS",
		})
		return
	}

	apps, err := h.applications.ListApplications(c.Request.Context(), status)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "total": len(apps)})
}

// ApproveOwnerApplication handles POST /api/v1/admin/owner-applications/:id/approve
func (h *AdminHandler) ApproveOwnerApplication(c *gin.Context) {
	h.review(c, h.applications.Approve, "Application approved")
}

// RejectOwnerApplication handles POST /api/v1/admin/owner-applications/:id/reject
func (h *AdminHandler) RejectOwnerApplication(c *gin.Context) {
	h.review(c, h.applications.Reject, "Application rejected")
}

func (h *AdminHandler) review(c *gin.Context, review func(context.Context, services.Caller, uuid.UUID, services.RequestMeta) error, message string) {
	appID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := review(c.Request.Context(), caller(c), appID, requestMeta(c)); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}
