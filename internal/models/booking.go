package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus is the owner-facing decision state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusApproved  BookingStatus = "Approved"
	BookingStatusRejected  BookingStatus = "Rejected"
	BookingStatusCancelled BookingStatus = "Cancelled"
)

// IsVoided reports whether the booking no longer holds its dates
func (s BookingStatus) IsVoided() bool {
	return s == BookingStatusRejected || s == BookingStatusCancelled
}

// CheckFinalizable reports whether a payment outcome may still be applied to
// a booking in status s. Voided bookings are terminal, and under owner
// approval a Pending booking has nothing to pay for yet.
func CheckFinalizable(s BookingStatus, autoApprove bool) error {
	if s.IsVoided() {
		return fmt.Errorf("%w: booking is %s", ErrIneligible, s)
	}
	if s == BookingStatusPending && !autoApprove {
		return fmt.Errorf("%w: booking is awaiting the stall owner's approval", ErrIneligible)
	}
	return nil
}

// PaymentStatus is shared by bookings and payment attempts
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// DateLayout is the wire format for booking and event dates
const DateLayout = "2006-01-02"

// Booking is a customer's reservation of a stall for an inclusive date range
type Booking struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	StallID       uuid.UUID     `json:"stall_id" db:"stall_id"`
	CustomerID    uuid.UUID     `json:"customer_id" db:"customer_id"`
	StartDate     time.Time     `json:"start_date" db:"start_date"`
	EndDate       time.Time     `json:"end_date" db:"end_date"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     NullTime      `json:"updated_at" db:"updated_at"`
}

// Overlaps applies the inclusive range test a.start <= b.end && a.end >= b.start
func (b *Booking) Overlaps(start, end time.Time) bool {
	return RangesOverlap(b.StartDate, b.EndDate, start, end)
}

// RangesOverlap reports whether two inclusive date ranges share at least one day
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !DateOnly(aStart).After(DateOnly(bEnd)) && !DateOnly(aEnd).Before(DateOnly(bStart))
}

// BookingWithStall joins a booking with the stall fields needed for pricing and display
type BookingWithStall struct {
	Booking
	StallName    string    `json:"stall_name" db:"stall_name"`
	StallOwnerID uuid.UUID `json:"stall_owner_id" db:"stall_owner_id"`
	RentPerDay   float64   `json:"rent_per_day" db:"rent_per_day"`
	CustomerName string    `json:"customer_name,omitempty" db:"customer_name"`
	CustomerMail string    `json:"customer_email,omitempty" db:"customer_email"`
	HasFeedback  bool      `json:"has_feedback" db:"has_feedback"`
}

// Amount is the derived price of the booking
func (b *BookingWithStall) Amount() float64 {
	return BookingAmount(b.StartDate, b.EndDate, b.RentPerDay)
}

// BookingListItem is a booking row as listed to customers and owners
type BookingListItem struct {
	BookingWithStall
	Amount            float64 `json:"amount"`
	CanPay            bool    `json:"can_pay"`
	CanSubmitFeedback bool    `json:"can_submit_feedback"`
}

// BookingDetail is the owner's view of one booking with its payments and feedback
type BookingDetail struct {
	Booking  BookingWithStall `json:"booking"`
	Amount   float64          `json:"amount"`
	Payments []Payment        `json:"payments"`
	Feedback *Feedback        `json:"feedback,omitempty"`
}

// CreateBookingRequest is the payload for booking a stall
type CreateBookingRequest struct {
	StallID   string `json:"stall_id" binding:"required,uuid"`
	StartDate string `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate   string `json:"end_date" binding:"required"`   // YYYY-MM-DD
}

// ============================================================================
// PRICING
// ============================================================================

// DateOnly truncates t to its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BookedDays counts the days of an inclusive range, never less than one
func BookedDays(start, end time.Time) int {
	days := int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// BookingAmount prices an inclusive date range at rentPerDay
func BookingAmount(start, end time.Time, rentPerDay float64) float64 {
	amount := decimal.NewFromFloat(rentPerDay).Mul(decimal.NewFromInt(int64(BookedDays(start, end))))
	return amount.Round(2).InexactFloat64()
}

// RoundMoney rounds half away from zero to 2 decimal places
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundRating rounds half away from zero to 1 decimal place
func RoundRating(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// ToMinorUnits converts an amount to paise/cents, rounding half away from zero.
// It agrees with RoundMoney: ToMinorUnits(v) == RoundMoney(v)*100.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(2).Shift(2).IntPart()
}
