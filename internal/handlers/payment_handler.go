package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RazorpaySignatureHeader carries the webhook HMAC
const RazorpaySignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 1 << 20

// PaymentAPI is implemented by services.PaymentService
type PaymentAPI interface {
	Initiate(ctx context.Context, bookingID, customerID uuid.UUID, meta services.RequestMeta) (*models.CheckoutResponse, error)
	Confirm(ctx context.Context, bookingID, customerID uuid.UUID, req *models.ConfirmPaymentRequest, meta services.RequestMeta) (*models.ConfirmResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string, meta services.RequestMeta) (*models.ConfirmResult, error)
}

// SuspiciousActivityLogger is implemented by services.AuditService
type SuspiciousActivityLogger interface {
	LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, activity string, details map[string]interface{}, meta services.RequestMeta) error
}

// PaymentHandler serves checkout, confirmation and gateway webhooks
type PaymentHandler struct {
	payments PaymentAPI
	auditor  SuspiciousActivityLogger
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentAPI, auditor SuspiciousActivityLogger, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, auditor: auditor, logger: logger}
}

// InitiatePayment handles POST /api/v1/bookings/:id/payment
// @Summary Create a gateway order for an approved booking
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.CheckoutResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /bookings/{id}/payment [post]
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	checkout, err := h.payments.Initiate(c.Request.Context(), bookingID, caller(c).ID, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// ConfirmPayment handles POST /api/v1/bookings/:id/payment/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.payments.Confirm(c.Request.Context(), bookingID, caller(c).ID, &req, requestMeta(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RazorpayWebhook handles POST /api/v1/payments/razorpay/webhook.
// Unsigned or tampered notifications are rejected and audited.
func (h *PaymentHandler) RazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Failed to read body", Code: "INVALID_REQUEST"})
		return
	}

	meta := requestMeta(c)
	result, err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(RazorpaySignatureHeader), meta)
	if err != nil {
		if errors.Is(err, models.ErrVerificationFailed) {
			if auditErr := h.auditor.LogSuspiciousActivity(c.Request.Context(), nil, "invalid_webhook_signature", map[string]interface{}{
				"path":      c.Request.URL.Path,
				"body_size": len(body),
			}, meta); auditErr != nil {
				h.logger.WithError(auditErr).Warn("Failed to audit webhook rejection")
			}
		}
		handleError(c, h.logger, err)
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed", "result": result})
}
