package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FeedbackStore is the feedback persistence used by FeedbackService
type FeedbackStore interface {
	Create(ctx context.Context, fb *models.Feedback) error
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Feedback, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error)
}

// FeedbackService records the single review allowed per finished, paid booking
type FeedbackService struct {
	bookings  BookingReader
	feedback  FeedbackStore
	publisher events.Publisher
	clock     Clock
	logger    *logrus.Logger
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(bookings BookingReader, feedback FeedbackStore, publisher events.Publisher, logger *logrus.Logger) *FeedbackService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &FeedbackService{bookings: bookings, feedback: feedback, publisher: publisher, logger: logger}
}

// Submit stores the customer's feedback for a booking
func (s *FeedbackService) Submit(ctx context.Context, bookingID, customerID uuid.UUID, req *models.SubmitFeedbackRequest) (*models.Feedback, error) {
	booking, err := s.bookings.GetWithStall(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID)
	}
	if err := isFeedbackEligible(&booking.Booking, s.clock.today()); err != nil {
		return nil, err
	}
	if booking.HasFeedback {
		return nil, fmt.Errorf("%w: feedback for booking %s", models.ErrAlreadyExists, bookingID)
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", models.ErrInvalidRange)
	}

	fb := &models.Feedback{
		BookingID:   bookingID,
		Rating:      req.Rating,
		Comments:    strings.TrimSpace(req.Comments),
		SubmittedAt: s.clock.now().UTC(),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"booking_id": bookingID, "feedback_id": fb.ID}).Info("Feedback submitted")
	attrs := map[string]interface{}{}
	if fb.Rating != nil {
		attrs["rating"] = *fb.Rating
	}
	s.publisher.Publish(ctx, events.Event{
		Type:       events.FeedbackSubmitted,
		BookingID:  bookingID,
		StallID:    booking.StallID,
		ActorID:    customerID,
		Attributes: attrs,
	})
	return fb, nil
}

// ListForOwner returns the most recent feedback on the owner's stalls
func (s *FeedbackService) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.feedback.ListForOwner(ctx, ownerID, limit)
}

// isFeedbackEligible requires an approved, paid booking that has ended
func isFeedbackEligible(b *models.Booking, today time.Time) error {
	switch {
	case b.Status != models.BookingStatusApproved:
		return fmt.Errorf("%w: booking is %s", models.ErrIneligible, b.Status)
	case b.PaymentStatus != models.PaymentStatusCompleted:
		return fmt.Errorf("%w: payment is %s", models.ErrIneligible, b.PaymentStatus)
	case models.DateOnly(b.EndDate).After(today):
		return fmt.Errorf("%w: booking has not ended yet", models.ErrIneligible)
	}
	return nil
}
