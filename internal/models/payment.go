package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProviderRazorpay is the provider name stamped on pending payment attempts
const ProviderRazorpay = "Razorpay"

// CompletedProvider is the provider label stored once a gateway order is paid
func CompletedProvider(orderID string) string {
	return fmt.Sprintf("%s (Order: %s)", ProviderRazorpay, orderID)
}

// Payment is one payment attempt against a booking
type Payment struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	BookingID            uuid.UUID     `json:"booking_id" db:"booking_id"`
	Amount               float64       `json:"amount" db:"amount"`
	Provider             string        `json:"provider" db:"provider"`
	TransactionReference string        `json:"transaction_reference" db:"transaction_reference"`
	Status               PaymentStatus `json:"status" db:"status"`
	ProcessedAt          time.Time     `json:"processed_at" db:"processed_at"`
}

// GatewayOrder is an order created at the payment gateway
type GatewayOrder struct {
	OrderID  string  `json:"order_id"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Receipt  string  `json:"receipt"`
}

// CheckoutResponse gives the client what it needs to open the gateway checkout
type CheckoutResponse struct {
	BookingID uuid.UUID `json:"booking_id"`
	PaymentID uuid.UUID `json:"payment_id"`
	StallName string    `json:"stall_name"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	OrderID   string    `json:"order_id"`
	Receipt   string    `json:"receipt"`
	KeyID     string    `json:"key_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

// ConfirmPaymentRequest carries the gateway callback fields
type ConfirmPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// ConfirmResult describes the outcome of a payment confirmation
type ConfirmResult struct {
	BookingID        uuid.UUID     `json:"booking_id"`
	PaymentID        uuid.UUID     `json:"payment_id,omitempty"`
	Status           PaymentStatus `json:"status"`
	AlreadyProcessed bool          `json:"already_processed"`
}

// PaymentFinalization is the atomic outcome applied to a payment, its booking and the stall
type PaymentFinalization struct {
	BookingID   uuid.UUID
	StallID     uuid.UUID
	PaymentID   uuid.UUID
	OrderRef    string
	PaymentRef  string
	Amount      float64
	Success     bool
	ProcessedAt time.Time
	// AutoApprove lets a Pending booking be paid before the owner decides
	AutoApprove bool
}

// PaymentReportItem is a payment row in the admin payment report
type PaymentReportItem struct {
	Payment
	StallName     string    `json:"stall_name" db:"stall_name"`
	CustomerName  string    `json:"customer_name" db:"customer_name"`
	CustomerEmail string    `json:"customer_email" db:"customer_email"`
	StartDate     time.Time `json:"start_date" db:"start_date"`
	EndDate       time.Time `json:"end_date" db:"end_date"`
}
