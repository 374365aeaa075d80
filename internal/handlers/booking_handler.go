package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BookingAPI is implemented by services.BookingService
type BookingAPI interface {
	Create(ctx context.Context, customerID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingListItem, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingListItem, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingListItem, error)
	GetForOwner(ctx context.Context, caller services.Caller, bookingID uuid.UUID) (*models.BookingDetail, error)
	Approve(ctx context.Context, bookingID, ownerID uuid.UUID) error
	Reject(ctx context.Context, bookingID, ownerID uuid.UUID) error
}

// FeedbackAPI is implemented by services.FeedbackService
type FeedbackAPI interface {
	Submit(ctx context.Context, bookingID, customerID uuid.UUID, req *models.SubmitFeedbackRequest) (*models.Feedback, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error)
}

// OwnerDashboardAPI is implemented by services.ReportService
type OwnerDashboardAPI interface {
	OwnerDashboard(ctx context.Context, ownerID uuid.UUID) (*models.OwnerDashboard, error)
}

// BookingHandler serves the customer and owner sides of the booking lifecycle
type BookingHandler struct {
	bookings BookingAPI
	feedback FeedbackAPI
	reports  OwnerDashboardAPI
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingAPI, feedback FeedbackAPI, reports OwnerDashboardAPI, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		feedback: feedback,
		reports:  reports,
		logger:   logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
// @Summary Request a stall for a date range
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateBookingRequest true "Booking"
// @Success 201 {object} models.BookingListItem
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	customer := caller(c)
	booking, err := h.bookings.Create(c.Request.Context(), customer.ID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"customer_id": customer.ID,
		"stall_id":    booking.StallID,
	}).Info("Booking requested")

	c.JSON(http.StatusCreated, booking)
}

// ListMyBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	bookings, err := h.bookings.ListForCustomer(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// SubmitFeedback handles POST /api/v1/bookings/:id/feedback
func (h *BookingHandler) SubmitFeedback(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.SubmitFeedbackRequest
	if !bindJSON(c, &req) {
		return
	}

	fb, err := h.feedback.Submit(c.Request.Context(), bookingID, caller(c).ID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

// OwnerDashboard handles GET /api/v1/owner/dashboard
func (h *BookingHandler) OwnerDashboard(c *gin.Context) {
	dash, err := h.reports.OwnerDashboard(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// ListOwnerBookings handles GET /api/v1/owner/bookings
func (h *BookingHandler) ListOwnerBookings(c *gin.Context) {
	bookings, err := h.bookings.ListForOwner(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GetOwnerBooking handles GET /api/v1/owner/bookings/:id
func (h *BookingHandler) GetOwnerBooking(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.bookings.GetForOwner(c.Request.Context(), caller(c), bookingID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ApproveBooking handles POST /api/v1/owner/bookings/:id/approve
func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	h.decide(c, h.bookings.Approve, "Booking approved")
}

// RejectBooking handles POST /api/v1/owner/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.decide(c, h.bookings.Reject, "Booking rejected")
}

func (h *BookingHandler) decide(c *gin.Context, decide func(ctx context.Context, bookingID, ownerID uuid.UUID) error, message string) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	owner := caller(c)
	if err := decide(c.Request.Context(), bookingID, owner.ID); err != nil {
		handleError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"booking_id": bookingID, "owner_id": owner.ID}).Info(message)
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// ListOwnerFeedback handles GET /api/v1/owner/feedback?limit=n
func (h *BookingHandler) ListOwnerFeedback(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	items, err := h.feedback.ListForOwner(c.Request.Context(), caller(c).ID, limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": items, "total": len(items)})
}
