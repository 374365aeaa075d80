package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated       PaymentEventType = "payment_initiated"
	PaymentEventOrderCreated    PaymentEventType = "order_created"
	PaymentEventConfirmReceived PaymentEventType = "confirm_received"
	PaymentEventWebhookReceived PaymentEventType = "webhook_received"
	PaymentEventSuccess         PaymentEventType = "payment_success"
	PaymentEventFailed          PaymentEventType = "payment_failed"
	PaymentEventDuplicate       PaymentEventType = "duplicate_callback"
	PaymentEventError           PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourceRazorpayAPI     PaymentEventSource = "razorpay_api"
	PaymentSourceRazorpayWebhook PaymentEventSource = "razorpay_webhook"
	PaymentSourceCheckout        PaymentEventSource = "checkout_callback"
)

// JSONB is a map stored in a JSONB column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// PaymentAudit is an append-only record of one gateway interaction
type PaymentAudit struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingID        uuid.NullUUID `json:"booking_id,omitempty" db:"booking_id"`
	OrderID          *string       `json:"order_id,omitempty" db:"order_id"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`
	PaymentStatus  *string  `json:"payment_status,omitempty" db:"payment_status"`

	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	HTTPStatusCode  *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	EndpointURL     *string `json:"endpoint_url,omitempty" db:"endpoint_url"`
	ErrorMessage    *string `json:"error_message,omitempty" db:"error_message"`

	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool    `json:"is_duplicate" db:"is_duplicate"`
	IPAddress        *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent        *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking the event belongs to
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = uuid.NullUUID{UUID: bookingID, Valid: true}
	return pa
}

// SetOrderID sets the gateway order id
func (pa *PaymentAudit) SetOrderID(orderID string) *PaymentAudit {
	if orderID != "" {
		pa.OrderID = &orderID
	}
	return pa
}

// SetGatewayPaymentID sets the gateway payment id
func (pa *PaymentAudit) SetGatewayPaymentID(paymentID string) *PaymentAudit {
	if paymentID != "" {
		pa.GatewayPaymentID = &paymentID
	}
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	match := ToMinorUnits(expected) == ToMinorUnits(received)
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the resulting payment status
func (pa *PaymentAudit) SetPaymentStatus(status PaymentStatus) *PaymentAudit {
	s := string(status)
	pa.PaymentStatus = &s
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetHTTPDetails sets gateway endpoint and response code
func (pa *PaymentAudit) SetHTTPDetails(url string, statusCode int) *PaymentAudit {
	pa.EndpointURL = &url
	pa.HTTPStatusCode = &statusCode
	return pa
}

// SetRequestPayload sets the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}

// SetProcessingTime sets the elapsed time since startTime
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate delivery
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
