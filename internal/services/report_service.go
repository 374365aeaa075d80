package services

import (
	"context"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

// Dashboard list sizes
const (
	dashboardUpcomingLimit = 6
	dashboardFeedbackLimit = 6
)

// ReportStore runs the aggregate queries behind the dashboards
type ReportStore interface {
	OwnerStallSummaries(ctx context.Context, ownerID uuid.UUID) ([]models.OwnerStallSummary, error)
	OwnerUpcoming(ctx context.Context, ownerID uuid.UUID, today string, limit int) ([]models.UpcomingEntry, error)
	EventRevenue(ctx context.Context, eventID uuid.UUID) (float64, error)
	AdminDashboard(ctx context.Context) (*models.AdminDashboard, error)
}

// PaymentReporter lists payments for the admin report
type PaymentReporter interface {
	ListReport(ctx context.Context) ([]models.PaymentReportItem, error)
}

// ReportService builds read-only dashboard projections
type ReportService struct {
	reports  ReportStore
	feedback FeedbackStore
	events   EventStore
	bookings *BookingService
	payments PaymentReporter
	clock    Clock
}

// NewReportService creates a new ReportService
func NewReportService(reports ReportStore, feedback FeedbackStore, events EventStore, bookings *BookingService, payments PaymentReporter) *ReportService {
	return &ReportService{
		reports:  reports,
		feedback: feedback,
		events:   events,
		bookings: bookings,
		payments: payments,
	}
}

// OwnerDashboard summarises the owner's stalls, revenue, upcoming bookings and feedback
func (s *ReportService) OwnerDashboard(ctx context.Context, ownerID uuid.UUID) (*models.OwnerDashboard, error) {
	summaries, err := s.reports.OwnerStallSummaries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	today := s.clock.today().Format(models.DateLayout)

	// Every upcoming booking is needed to find each stall's next one; the
	// dashboard list itself is capped below.
	upcoming, err := s.reports.OwnerUpcoming(ctx, ownerID, today, 0)
	if err != nil {
		return nil, err
	}
	recent, err := s.feedback.ListForOwner(ctx, ownerID, dashboardFeedbackLimit)
	if err != nil {
		return nil, err
	}

	next := make(map[uuid.UUID]*models.UpcomingEntry, len(summaries))
	for i := range upcoming {
		if _, seen := next[upcoming[i].StallID]; !seen {
			next[upcoming[i].StallID] = &upcoming[i]
		}
	}

	dash := &models.OwnerDashboard{
		TotalStalls:    len(summaries),
		Stalls:         summaries,
		RecentFeedback: recent,
	}
	var ratingSum float64
	var ratingCount int
	for i := range dash.Stalls {
		st := &dash.Stalls[i]
		st.Revenue = models.RoundMoney(st.Revenue)
		if st.AverageRating != nil {
			ratingSum += *st.AverageRating * float64(st.ReviewCount)
			ratingCount += st.ReviewCount
			rounded := models.RoundRating(*st.AverageRating)
			st.AverageRating = &rounded
		}
		st.NextBooking = next[st.StallID]

		dash.TotalBookings += st.TotalBookings
		dash.PendingRequests += st.PendingRequests
		dash.TotalRevenue += st.Revenue
	}
	dash.TotalRevenue = models.RoundMoney(dash.TotalRevenue)
	if ratingCount > 0 {
		avg := models.RoundRating(ratingSum / float64(ratingCount))
		dash.AverageRating = &avg
	}

	if len(upcoming) > dashboardUpcomingLimit {
		upcoming = upcoming[:dashboardUpcomingLimit]
	}
	dash.UpcomingBookings = upcoming
	return dash, nil
}

// OwnerEventDetails shows an owner's event with slot occupancy, unpaid bookings and revenue
func (s *ReportService) OwnerEventDetails(ctx context.Context, caller Caller, eventID uuid.UUID) (*models.OwnerEventDetails, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if Authorize(caller, event.OwnerID) != nil {
		return nil, fmt.Errorf("%w: event %s", models.ErrNotFound, eventID)
	}

	slots, err := s.events.ListSlots(ctx, eventID)
	if err != nil {
		return nil, err
	}
	pending, err := s.bookings.ListAwaitingPayment(ctx, eventID)
	if err != nil {
		return nil, err
	}
	revenue, err := s.reports.EventRevenue(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &models.OwnerEventDetails{
		Event:           event,
		Slots:           slots,
		AvailableSlots:  countStatus(slots, models.StallStatusAvailable),
		BookedSlots:     countStatus(slots, models.StallStatusBooked),
		PendingPayments: pending,
		Revenue:         models.RoundMoney(revenue),
	}, nil
}

// AdminDashboard returns the platform-wide counters
func (s *ReportService) AdminDashboard(ctx context.Context) (*models.AdminDashboard, error) {
	return s.reports.AdminDashboard(ctx)
}

// PaymentReports lists every payment with its booking, stall and customer
func (s *ReportService) PaymentReports(ctx context.Context) ([]models.PaymentReportItem, error) {
	return s.payments.ListReport(ctx)
}
