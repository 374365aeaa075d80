package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is the single review a customer may leave on a finished booking
type Feedback struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookingID   uuid.UUID `json:"booking_id" db:"booking_id"`
	Rating      *int      `json:"rating,omitempty" db:"rating"`
	Comments    string    `json:"comments" db:"comments"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// FeedbackListItem is a feedback row shown to a stall owner
type FeedbackListItem struct {
	Feedback
	StallID      uuid.UUID `json:"stall_id" db:"stall_id"`
	StallName    string    `json:"stall_name" db:"stall_name"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
}

// SubmitFeedbackRequest is the payload for leaving feedback
type SubmitFeedbackRequest struct {
	Rating   *int   `json:"rating" binding:"omitempty,min=1,max=5"`
	Comments string `json:"comments" binding:"required,max=1000"`
}
