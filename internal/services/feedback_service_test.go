package services

import (
	"context"
	"testing"

	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupFeedbackTest(today string) (*FeedbackService, *mockBookingStore, *mockFeedbackStore, *recordingPublisher) {
	bookings := &mockBookingStore{}
	feedback := &mockFeedbackStore{}
	publisher := &recordingPublisher{}
	svc := NewFeedbackService(bookings, feedback, publisher, quietLogger())
	svc.clock = fixedClock(today)
	return svc, bookings, feedback, publisher
}

func finishedBooking(customerID uuid.UUID, payment models.PaymentStatus) *models.BookingWithStall {
	return &models.BookingWithStall{
		Booking: models.Booking{
			ID:            uuid.New(),
			StallID:       uuid.New(),
			CustomerID:    customerID,
			StartDate:     mustDate("2024-01-01"),
			EndDate:       mustDate("2024-01-03"),
			Status:        models.BookingStatusApproved,
			PaymentStatus: payment,
		},
		RentPerDay: 100,
	}
}

func intPtr(v int) *int { return &v }

func TestFeedbackSubmit_Lifecycle(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("Pending Payment Is Ineligible", func(t *testing.T) {
		svc, bookings, _, _ := setupFeedbackTest("2024-01-10")
		booking := finishedBooking(customerID, models.PaymentStatusPending)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Rating: intPtr(5), Comments: "great"})
		assert.ErrorIs(t, err, models.ErrIneligible)
	})

	t.Run("First Submission Succeeds", func(t *testing.T) {
		svc, bookings, feedback, publisher := setupFeedbackTest("2024-01-10")
		booking := finishedBooking(customerID, models.PaymentStatusCompleted)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)
		feedback.On("Create", ctx, mock.MatchedBy(func(fb *models.Feedback) bool {
			return fb.BookingID == booking.ID && *fb.Rating == 4 && fb.Comments == "busy hall"
		})).Return(nil)

		fb, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Rating: intPtr(4), Comments: "  busy hall "})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, fb.ID)
		assert.Equal(t, []events.Type{events.FeedbackSubmitted}, publisher.types())
	})

	t.Run("Second Submission Already Exists", func(t *testing.T) {
		svc, bookings, feedback, _ := setupFeedbackTest("2024-01-10")
		booking := finishedBooking(customerID, models.PaymentStatusCompleted)
		booking.HasFeedback = true
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Comments: "again"})
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
		feedback.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestFeedbackSubmit_Rules(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("Not Ended Yet", func(t *testing.T) {
		svc, bookings, _, _ := setupFeedbackTest("2024-01-02")
		booking := finishedBooking(customerID, models.PaymentStatusCompleted)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Comments: "early"})
		assert.ErrorIs(t, err, models.ErrIneligible)
	})

	t.Run("Ends Today Is Eligible", func(t *testing.T) {
		svc, bookings, feedback, _ := setupFeedbackTest("2024-01-03")
		booking := finishedBooking(customerID, models.PaymentStatusCompleted)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)
		feedback.On("Create", ctx, mock.Anything).Return(nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Comments: "last day"})
		assert.NoError(t, err)
	})

	t.Run("Rating Out Of Range", func(t *testing.T) {
		svc, bookings, _, _ := setupFeedbackTest("2024-01-10")
		booking := finishedBooking(customerID, models.PaymentStatusCompleted)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Rating: intPtr(6), Comments: "x"})
		assert.ErrorIs(t, err, models.ErrInvalidRange)
	})

	t.Run("Someone Else's Booking", func(t *testing.T) {
		svc, bookings, _, _ := setupFeedbackTest("2024-01-10")
		booking := finishedBooking(uuid.New(), models.PaymentStatusCompleted)
		bookings.On("GetWithStall", ctx, booking.ID).Return(booking, nil)

		_, err := svc.Submit(ctx, booking.ID, customerID, &models.SubmitFeedbackRequest{Comments: "x"})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestFeedbackListForOwner_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, feedback, _ := setupFeedbackTest("2024-01-10")
	ownerID := uuid.New()
	feedback.On("ListForOwner", ctx, ownerID, 50).Return([]models.FeedbackListItem{}, nil)

	_, err := svc.ListForOwner(ctx, ownerID, 0)
	require.NoError(t, err)
	_, err = svc.ListForOwner(ctx, ownerID, 1000)
	require.NoError(t, err)
	feedback.AssertNumberOfCalls(t, "ListForOwner", 2)
}
