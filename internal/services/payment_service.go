package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Webhook events acted upon; everything else is acknowledged and ignored
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

// PaymentStore is the payment persistence used by PaymentService
type PaymentStore interface {
	SavePendingAttempt(ctx context.Context, bookingID uuid.UUID, amount float64, orderRef string) (uuid.UUID, error)
	Finalize(ctx context.Context, f *models.PaymentFinalization) (*models.ConfirmResult, error)
	FindBookingByOrderRef(ctx context.Context, orderRef string) (uuid.UUID, error)
}

// BookingReader loads a booking with the stall fields needed for pricing
type BookingReader interface {
	GetWithStall(ctx context.Context, id uuid.UUID) (*models.BookingWithStall, error)
}

// PaymentAuditor appends to the payment audit trail
type PaymentAuditor interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// RequestMeta identifies the client behind a request
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// PaymentService runs the payment side of the lifecycle: order creation,
// checkout confirmation and gateway webhooks.
type PaymentService struct {
	bookings    BookingReader
	payments    PaymentStore
	gateway     PaymentGateway
	audits      PaymentAuditor
	publisher   events.Publisher
	autoApprove bool
	clock       Clock
	logger      *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookings BookingReader,
	payments PaymentStore,
	gateway PaymentGateway,
	audits PaymentAuditor,
	publisher events.Publisher,
	autoApprove bool,
	logger *logrus.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PaymentService{
		bookings:    bookings,
		payments:    payments,
		gateway:     gateway,
		audits:      audits,
		publisher:   publisher,
		autoApprove: autoApprove,
		logger:      logger,
	}
}

// Initiate creates a gateway order for the booking and records a pending
// payment attempt. Nothing is written unless the gateway accepted the order.
func (s *PaymentService) Initiate(ctx context.Context, bookingID, customerID uuid.UUID, meta RequestMeta) (*models.CheckoutResponse, error) {
	booking, err := s.customerBooking(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}
	if err := isPayable(&booking.Booking, s.autoApprove); err != nil {
		return nil, err
	}
	if !s.gateway.IsConfigured() {
		return nil, models.ErrGatewayUnconfigured
	}

	startTime := time.Now()
	amount := booking.Amount()
	receipt := fmt.Sprintf("BK-%s-%d", booking.ID, s.clock.now().UnixNano())

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetBooking(bookingID).
		SetRequestPayload(map[string]interface{}{"receipt": receipt, "amount": amount}).
		SetMetadata(meta.IPAddress, meta.UserAgent))

	order, call, err := s.gateway.CreateOrder(ctx, amount, receipt)
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceRazorpayAPI).
			SetBooking(bookingID).
			SetError(err.Error()).
			SetProcessingTime(startTime)
		applyCall(audit, call)
		s.audit(ctx, audit)
		return nil, err
	}

	paymentID, err := s.payments.SavePendingAttempt(ctx, bookingID, amount, order.OrderID)
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceRazorpayAPI).
		SetBooking(bookingID).
		SetOrderID(order.OrderID).
		SetPaymentStatus(models.PaymentStatusPending).
		SetMetadata(meta.IPAddress, meta.UserAgent).
		SetProcessingTime(startTime)
	audit.SetAmounts(amount, order.Amount, order.Currency)
	applyCall(audit, call)
	s.audit(ctx, audit)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"payment_id": paymentID,
		"order_id":   order.OrderID,
		"amount":     amount,
	}).Info("Payment initiated")

	return &models.CheckoutResponse{
		BookingID: bookingID,
		PaymentID: paymentID,
		StallName: booking.StallName,
		Amount:    amount,
		Currency:  order.Currency,
		OrderID:   order.OrderID,
		Receipt:   order.Receipt,
		KeyID:     s.gateway.KeyID(),
		StartDate: booking.StartDate.Format(models.DateLayout),
		EndDate:   booking.EndDate.Format(models.DateLayout),
	}, nil
}

// Confirm verifies the checkout callback and finalises the booking. A
// booking that is already paid is reported as processed without changes.
func (s *PaymentService) Confirm(ctx context.Context, bookingID, customerID uuid.UUID, req *models.ConfirmPaymentRequest, meta RequestMeta) (*models.ConfirmResult, error) {
	booking, err := s.customerBooking(ctx, bookingID, customerID)
	if err != nil {
		return nil, err
	}

	received := models.NewPaymentAudit(models.PaymentEventConfirmReceived, models.PaymentSourceCheckout).
		SetBooking(bookingID).
		SetOrderID(req.OrderID).
		SetGatewayPaymentID(req.PaymentID).
		SetMetadata(meta.IPAddress, meta.UserAgent)

	if booking.PaymentStatus == models.PaymentStatusCompleted {
		s.audit(ctx, received.MarkAsDuplicate())
		return &models.ConfirmResult{
			BookingID:        bookingID,
			Status:           models.PaymentStatusCompleted,
			AlreadyProcessed: true,
		}, nil
	}
	if err := models.CheckFinalizable(booking.Status, s.autoApprove); err != nil {
		s.audit(ctx, received.SetError(err.Error()))
		return nil, err
	}
	s.audit(ctx, received)

	verified := s.gateway.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature)
	result, err := s.finalize(ctx, booking, req.OrderID, req.PaymentID, verified, customerID, models.PaymentSourceCheckout)
	if err != nil {
		return nil, err
	}
	if !verified && !result.AlreadyProcessed {
		return result, fmt.Errorf("%w: signature mismatch for order %s", models.ErrVerificationFailed, req.OrderID)
	}
	return result, nil
}

// webhookPayload is the subset of a Razorpay webhook body we read
type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				Currency         string `json:"currency"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook applies a signed gateway notification. Events other than
// payment.captured and payment.failed return a nil result.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string, meta RequestMeta) (*models.ConfirmResult, error) {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.logger.WithField("ip", meta.IPAddress).Warn("Rejected webhook with invalid signature")
		return nil, fmt.Errorf("%w: invalid webhook signature", models.ErrVerificationFailed)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body", models.ErrInvalidRange)
	}
	if payload.Event != WebhookPaymentCaptured && payload.Event != WebhookPaymentFailed {
		s.logger.WithField("event", payload.Event).Debug("Ignoring webhook event")
		return nil, nil
	}

	entity := payload.Payload.Payment.Entity
	bookingID, err := s.payments.FindBookingByOrderRef(ctx, entity.OrderID)
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetWithStall(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceRazorpayWebhook).
		SetBooking(bookingID).
		SetOrderID(entity.OrderID).
		SetGatewayPaymentID(entity.ID).
		SetRequestPayload(map[string]interface{}{"event": payload.Event, "status": entity.Status}).
		SetMetadata(meta.IPAddress, meta.UserAgent)
	if entity.Amount > 0 {
		if !audit.SetAmounts(booking.Amount(), float64(entity.Amount)/100, entity.Currency) {
			s.logger.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"expected":   booking.Amount(),
				"received":   float64(entity.Amount) / 100,
			}).Warn("Webhook amount differs from booking amount")
		}
	}
	if entity.ErrorDescription != "" {
		audit.SetError(entity.ErrorDescription)
	}
	if err := models.CheckFinalizable(booking.Status, s.autoApprove); err != nil && booking.PaymentStatus != models.PaymentStatusCompleted {
		s.audit(ctx, audit.SetError(err.Error()))
		s.ignoreLateWebhook(bookingID, payload.Event, err)
		return nil, nil
	}
	s.audit(ctx, audit)

	success := payload.Event == WebhookPaymentCaptured
	result, err := s.finalize(ctx, booking, entity.OrderID, entity.ID, success, uuid.Nil, models.PaymentSourceRazorpayWebhook)
	if errors.Is(err, models.ErrIneligible) {
		// the booking was voided between the read and the row lock
		s.ignoreLateWebhook(bookingID, payload.Event, err)
		return nil, nil
	}
	return result, err
}

// ignoreLateWebhook acknowledges a notification for a booking that can no
// longer change, so the gateway stops redelivering it.
func (s *PaymentService) ignoreLateWebhook(bookingID uuid.UUID, event string, reason error) {
	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"event":      event,
		"reason":     reason.Error(),
	}).Warn("Ignoring webhook for a booking that can no longer be paid")
}

func (s *PaymentService) finalize(
	ctx context.Context,
	booking *models.BookingWithStall,
	orderRef, paymentRef string,
	success bool,
	actorID uuid.UUID,
	source models.PaymentEventSource,
) (*models.ConfirmResult, error) {
	startTime := time.Now()
	result, err := s.payments.Finalize(ctx, &models.PaymentFinalization{
		BookingID:   booking.ID,
		OrderRef:    orderRef,
		PaymentRef:  paymentRef,
		Amount:      booking.Amount(),
		Success:     success,
		AutoApprove: s.autoApprove,
	})
	if err != nil {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventError, source).
			SetBooking(booking.ID).
			SetOrderID(orderRef).
			SetGatewayPaymentID(paymentRef).
			SetError(err.Error()))
		return nil, err
	}

	if result.AlreadyProcessed {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventDuplicate, source).
			SetBooking(booking.ID).
			SetOrderID(orderRef).
			SetGatewayPaymentID(paymentRef).
			MarkAsDuplicate())
		return result, nil
	}

	eventType, auditType := events.PaymentCompleted, models.PaymentEventSuccess
	if !success {
		eventType, auditType = events.PaymentFailed, models.PaymentEventFailed
	}
	s.audit(ctx, models.NewPaymentAudit(auditType, source).
		SetBooking(booking.ID).
		SetOrderID(orderRef).
		SetGatewayPaymentID(paymentRef).
		SetPaymentStatus(result.Status).
		SetProcessingTime(startTime))

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"payment_id": result.PaymentID,
		"order_id":   orderRef,
		"status":     result.Status,
		"source":     source,
	}).Info("Payment finalised")

	s.publisher.Publish(ctx, events.Event{
		Type:      eventType,
		BookingID: booking.ID,
		StallID:   booking.StallID,
		ActorID:   actorID,
		Amount:    booking.Amount(),
		Attributes: map[string]interface{}{
			"payment_id": result.PaymentID,
			"order_id":   orderRef,
		},
	})
	return result, nil
}

// customerBooking loads a booking and hides it from anyone but its customer
func (s *PaymentService) customerBooking(ctx context.Context, bookingID, customerID uuid.UUID) (*models.BookingWithStall, error) {
	booking, err := s.bookings.GetWithStall(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID)
	}
	return booking, nil
}

// audit writes to the payment trail; a failed write never fails the payment
func (s *PaymentService) audit(ctx context.Context, audit *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, audit); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Warn("Failed to write payment audit")
	}
}

func applyCall(audit *models.PaymentAudit, call *GatewayCall) {
	if call == nil {
		return
	}
	audit.SetHTTPDetails(call.Endpoint, call.StatusCode)
	if call.Request != nil {
		audit.SetRequestPayload(call.Request)
	}
	if call.Response != nil {
		audit.SetResponsePayload(call.Response)
	}
}
