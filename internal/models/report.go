package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnerStallSummary aggregates bookings, revenue and ratings for one stall
type OwnerStallSummary struct {
	StallID         uuid.UUID      `json:"stall_id" db:"stall_id"`
	StallName       string         `json:"stall_name" db:"stall_name"`
	Status          StallStatus    `json:"status" db:"status"`
	RentPerDay      float64        `json:"rent_per_day" db:"rent_per_day"`
	TotalBookings   int            `json:"total_bookings" db:"total_bookings"`
	PendingRequests int            `json:"pending_requests" db:"pending_requests"`
	Revenue         float64        `json:"revenue" db:"revenue"`
	AverageRating   *float64       `json:"average_rating" db:"average_rating"`
	ReviewCount     int            `json:"review_count" db:"review_count"`
	NextBooking     *UpcomingEntry `json:"next_booking,omitempty" db:"-"`
}

// UpcomingEntry is an approved booking that has not ended yet
type UpcomingEntry struct {
	BookingID    uuid.UUID `json:"booking_id" db:"booking_id"`
	StallID      uuid.UUID `json:"stall_id" db:"stall_id"`
	StallName    string    `json:"stall_name" db:"stall_name"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	StartDate    time.Time `json:"start_date" db:"start_date"`
	EndDate      time.Time `json:"end_date" db:"end_date"`
}

// OwnerDashboard is the stall owner's landing view
type OwnerDashboard struct {
	TotalStalls      int                 `json:"total_stalls"`
	TotalBookings    int                 `json:"total_bookings"`
	PendingRequests  int                 `json:"pending_requests"`
	TotalRevenue     float64             `json:"total_revenue"`
	AverageRating    *float64            `json:"average_rating"`
	Stalls           []OwnerStallSummary `json:"stalls"`
	UpcomingBookings []UpcomingEntry     `json:"upcoming_bookings"`
	RecentFeedback   []FeedbackListItem  `json:"recent_feedback"`
}

// OwnerEventDetails is the stall owner's view of one event
type OwnerEventDetails struct {
	Event           *Event            `json:"event"`
	Slots           []Stall           `json:"slots"`
	AvailableSlots  int               `json:"available_slots"`
	BookedSlots     int               `json:"booked_slots"`
	PendingPayments []BookingListItem `json:"pending_payments"`
	Revenue         float64           `json:"revenue"`
}

// AdminDashboard holds platform-wide counters
type AdminDashboard struct {
	TotalUsers          int     `json:"total_users" db:"total_users"`
	TotalStalls         int     `json:"total_stalls" db:"total_stalls"`
	AvailableStalls     int     `json:"available_stalls" db:"available_stalls"`
	PendingApplications int     `json:"pending_applications" db:"pending_applications"`
	PendingBookings     int     `json:"pending_bookings" db:"pending_bookings"`
	FailedPayments      int     `json:"failed_payments" db:"failed_payments"`
	TotalPayments       int     `json:"total_payments" db:"total_payments"`
	TotalRevenue        float64 `json:"total_revenue" db:"total_revenue"`
}
