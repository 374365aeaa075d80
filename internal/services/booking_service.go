package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/lock"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BookingStore is the booking persistence used by BookingService
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetWithStall(ctx context.Context, id uuid.UUID) (*models.BookingWithStall, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingWithStall, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingWithStall, error)
	ListAwaitingPaymentForEvent(ctx context.Context, eventID uuid.UUID) ([]models.BookingWithStall, error)
	Decide(ctx context.Context, bookingID, ownerID uuid.UUID, decision models.BookingStatus) error
}

// PaymentHistory lists the payment attempts of a booking
type PaymentHistory interface {
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error)
}

// FeedbackReader reads the feedback left on a booking
type FeedbackReader interface {
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Feedback, error)
}

// BookingService runs the booking side of the lifecycle: creation with
// overlap exclusion, owner decisions and the customer/owner listings.
type BookingService struct {
	bookings    BookingStore
	stalls      StallStore
	payments    PaymentHistory
	feedback    FeedbackReader
	locker      lock.StallLocker
	publisher   events.Publisher
	autoApprove bool
	clock       Clock
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService. autoApprove selects the
// direct-approve workflow where bookings are payable immediately.
func NewBookingService(
	bookings BookingStore,
	stalls StallStore,
	payments PaymentHistory,
	feedback FeedbackReader,
	locker lock.StallLocker,
	publisher events.Publisher,
	autoApprove bool,
	logger *logrus.Logger,
) *BookingService {
	if locker == nil {
		locker = lock.NoopStallLocker{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &BookingService{
		bookings:    bookings,
		stalls:      stalls,
		payments:    payments,
		feedback:    feedback,
		locker:      locker,
		publisher:   publisher,
		autoApprove: autoApprove,
		logger:      logger,
	}
}

// Create books a stall for an inclusive date range
func (s *BookingService) Create(ctx context.Context, customerID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingListItem, error) {
	stallID, err := uuid.Parse(req.StallID)
	if err != nil {
		return nil, fmt.Errorf("%w: stall %s", models.ErrNotFound, req.StallID)
	}
	stall, err := s.stalls.GetByID(ctx, stallID)
	if err != nil {
		return nil, err
	}

	start, end, err := ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if start.Before(s.clock.today()) {
		return nil, fmt.Errorf("%w: start date is in the past", models.ErrInvalidRange)
	}

	release, err := s.locker.Acquire(ctx, stallID)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
		return nil, err
	}
	defer release()

	status := models.BookingStatusPending
	if s.autoApprove {
		status = models.BookingStatusApproved
	}
	booking := &models.Booking{
		StallID:       stallID,
		CustomerID:    customerID,
		StartDate:     start,
		EndDate:       end,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	amount := models.BookingAmount(start, end, stall.RentPerDay)
	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"stall_id":    stallID,
		"customer_id": customerID,
		"status":      status,
		"amount":      amount,
	}).Info("Booking created")
	s.publisher.Publish(ctx, events.Event{
		Type:      events.BookingCreated,
		BookingID: booking.ID,
		StallID:   stallID,
		ActorID:   customerID,
		Amount:    amount,
		Attributes: map[string]interface{}{
			"status":     status,
			"start_date": start.Format(models.DateLayout),
			"end_date":   end.Format(models.DateLayout),
		},
	})

	item := s.listItem(models.BookingWithStall{
		Booking:      *booking,
		StallName:    stall.Name,
		StallOwnerID: stall.OwnerID,
		RentPerDay:   stall.RentPerDay,
	})
	return &item, nil
}

// Approve accepts a pending booking on one of the owner's stalls
func (s *BookingService) Approve(ctx context.Context, bookingID, ownerID uuid.UUID) error {
	return s.decide(ctx, bookingID, ownerID, models.BookingStatusApproved, events.BookingApproved)
}

// Reject declines a pending booking and frees the stall
func (s *BookingService) Reject(ctx context.Context, bookingID, ownerID uuid.UUID) error {
	return s.decide(ctx, bookingID, ownerID, models.BookingStatusRejected, events.BookingRejected)
}

func (s *BookingService) decide(ctx context.Context, bookingID, ownerID uuid.UUID, decision models.BookingStatus, eventType events.Type) error {
	if err := s.bookings.Decide(ctx, bookingID, ownerID, decision); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"owner_id":   ownerID,
		"decision":   decision,
	}).Info("Booking decided")

	event := events.Event{Type: eventType, BookingID: bookingID, ActorID: ownerID}
	if booking, err := s.bookings.GetWithStall(ctx, bookingID); err == nil {
		event.StallID = booking.StallID
		event.Amount = booking.Amount()
	}
	s.publisher.Publish(ctx, event)
	return nil
}

// ListForCustomer returns the customer's bookings with derived amounts and actions
func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingListItem, error) {
	rows, err := s.bookings.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.listItems(rows), nil
}

// ListForOwner returns bookings across all of the owner's stalls
func (s *BookingService) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingListItem, error) {
	rows, err := s.bookings.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.listItems(rows), nil
}

// ListAwaitingPayment returns an event's bookings whose payment is still pending
func (s *BookingService) ListAwaitingPayment(ctx context.Context, eventID uuid.UUID) ([]models.BookingListItem, error) {
	rows, err := s.bookings.ListAwaitingPaymentForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.listItems(rows), nil
}

// GetForOwner returns one booking with its payments and feedback
func (s *BookingService) GetForOwner(ctx context.Context, caller Caller, bookingID uuid.UUID) (*models.BookingDetail, error) {
	booking, err := s.bookings.GetWithStall(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(caller, booking.StallOwnerID); err != nil {
		return nil, err
	}

	payments, err := s.payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	feedback, err := s.feedback.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return &models.BookingDetail{
		Booking:  *booking,
		Amount:   booking.Amount(),
		Payments: payments,
		Feedback: feedback,
	}, nil
}

// ReleaseEndedStalls returns Booked stalls to Available once their approved bookings have ended
func (s *BookingService) ReleaseEndedStalls(ctx context.Context) (int64, error) {
	return s.stalls.ReleaseEnded(ctx, s.clock.today().Format(models.DateLayout))
}

// CanPay reports whether the customer may start a payment for the booking
func (s *BookingService) CanPay(b *models.Booking) bool {
	return isPayable(b, s.autoApprove) == nil
}

func (s *BookingService) listItems(rows []models.BookingWithStall) []models.BookingListItem {
	items := make([]models.BookingListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.listItem(row))
	}
	return items
}

func (s *BookingService) listItem(row models.BookingWithStall) models.BookingListItem {
	return models.BookingListItem{
		BookingWithStall:  row,
		Amount:            row.Amount(),
		CanPay:            s.CanPay(&row.Booking),
		CanSubmitFeedback: !row.HasFeedback && isFeedbackEligible(&row.Booking, s.clock.today()) == nil,
	}
}

// isPayable applies the payment preconditions on booking state
func isPayable(b *models.Booking, autoApprove bool) error {
	if err := models.CheckFinalizable(b.Status, autoApprove); err != nil {
		return err
	}
	if b.PaymentStatus == models.PaymentStatusCompleted {
		return fmt.Errorf("%w: booking is already paid", models.ErrIneligible)
	}
	return nil
}
