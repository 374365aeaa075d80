package database

import (
	"context"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const paymentAuditColumns = `id, booking_id, order_id, gateway_payment_id,
	event_type, event_source,
	expected_amount, received_amount, currency, amounts_match, payment_status,
	request_payload, response_payload, http_status_code, endpoint_url, error_message,
	processing_time_ms, is_duplicate, ip_address, user_agent, created_at`

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends a payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (` + paymentAuditColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.OrderID, audit.GatewayPaymentID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch, audit.PaymentStatus,
		audit.RequestPayload, audit.ResponsePayload, audit.HTTPStatusCode, audit.EndpointURL, audit.ErrorMessage,
		audit.ProcessingTimeMs, audit.IsDuplicate, audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"order_id":   audit.OrderID,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}
