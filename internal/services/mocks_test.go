package services

import (
	"context"
	"sync"
	"time"

	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/lock"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Bookings and stalls
// ---------------------------------------------------------------------------

type mockBookingStore struct{ mock.Mock }

func (m *mockBookingStore) Create(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	if args.Error(0) == nil && booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockBookingStore) GetWithStall(ctx context.Context, id uuid.UUID) (*models.BookingWithStall, error) {
	args := m.Called(ctx, id)
	if b, ok := args.Get(0).(*models.BookingWithStall); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingWithStall, error) {
	args := m.Called(ctx, customerID)
	rows, _ := args.Get(0).([]models.BookingWithStall)
	return rows, args.Error(1)
}

func (m *mockBookingStore) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingWithStall, error) {
	args := m.Called(ctx, ownerID)
	rows, _ := args.Get(0).([]models.BookingWithStall)
	return rows, args.Error(1)
}

func (m *mockBookingStore) ListAwaitingPaymentForEvent(ctx context.Context, eventID uuid.UUID) ([]models.BookingWithStall, error) {
	args := m.Called(ctx, eventID)
	rows, _ := args.Get(0).([]models.BookingWithStall)
	return rows, args.Error(1)
}

func (m *mockBookingStore) Decide(ctx context.Context, bookingID, ownerID uuid.UUID, decision models.BookingStatus) error {
	return m.Called(ctx, bookingID, ownerID, decision).Error(0)
}

type mockStallStore struct{ mock.Mock }

func (m *mockStallStore) Create(ctx context.Context, stall *models.Stall) error {
	args := m.Called(ctx, stall)
	if args.Error(0) == nil && stall.ID == uuid.Nil {
		stall.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockStallStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	args := m.Called(ctx, id)
	if s, ok := args.Get(0).(*models.Stall); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStallStore) Update(ctx context.Context, stall *models.Stall) error {
	return m.Called(ctx, stall).Error(0)
}

func (m *mockStallStore) SetStatus(ctx context.Context, id uuid.UUID, status models.StallStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStallStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStallStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error) {
	args := m.Called(ctx, ownerID)
	rows, _ := args.Get(0).([]models.Stall)
	return rows, args.Error(1)
}

func (m *mockStallStore) ListAll(ctx context.Context) ([]models.Stall, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]models.Stall)
	return rows, args.Error(1)
}

func (m *mockStallStore) ReleaseEnded(ctx context.Context, today string) (int64, error) {
	args := m.Called(ctx, today)
	return args.Get(0).(int64), args.Error(1)
}

type mockEventStore struct{ mock.Mock }

func (m *mockEventStore) CreateWithSlots(ctx context.Context, event *models.Event) ([]models.Stall, error) {
	args := m.Called(ctx, event)
	if args.Error(1) == nil && event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	rows, _ := args.Get(0).([]models.Stall)
	return rows, args.Error(1)
}

func (m *mockEventStore) AddSlot(ctx context.Context, stall *models.Stall) error {
	return m.Called(ctx, stall).Error(0)
}

func (m *mockEventStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(*models.Event); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventStore) List(ctx context.Context, search string) ([]models.EventListItem, error) {
	args := m.Called(ctx, search)
	rows, _ := args.Get(0).([]models.EventListItem)
	return rows, args.Error(1)
}

func (m *mockEventStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error) {
	args := m.Called(ctx, ownerID)
	rows, _ := args.Get(0).([]models.EventListItem)
	return rows, args.Error(1)
}

func (m *mockEventStore) ListSlots(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error) {
	args := m.Called(ctx, eventID)
	rows, _ := args.Get(0).([]models.Stall)
	return rows, args.Error(1)
}

func (m *mockEventStore) NextSlotNumber(ctx context.Context, eventID uuid.UUID) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

// ---------------------------------------------------------------------------
// Payments and feedback
// ---------------------------------------------------------------------------

type mockPaymentStore struct{ mock.Mock }

func (m *mockPaymentStore) SavePendingAttempt(ctx context.Context, bookingID uuid.UUID, amount float64, orderRef string) (uuid.UUID, error) {
	args := m.Called(ctx, bookingID, amount, orderRef)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockPaymentStore) Finalize(ctx context.Context, f *models.PaymentFinalization) (*models.ConfirmResult, error) {
	args := m.Called(ctx, f)
	if r, ok := args.Get(0).(*models.ConfirmResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentStore) FindBookingByOrderRef(ctx context.Context, orderRef string) (uuid.UUID, error) {
	args := m.Called(ctx, orderRef)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockPaymentStore) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, bookingID)
	rows, _ := args.Get(0).([]models.Payment)
	return rows, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) IsConfigured() bool { return m.Called().Bool(0) }
func (m *mockGateway) KeyID() string      { return "rzp_test_key" }
func (m *mockGateway) Currency() string   { return "INR" }

func (m *mockGateway) CreateOrder(ctx context.Context, amount float64, receipt string) (*models.GatewayOrder, *GatewayCall, error) {
	args := m.Called(ctx, amount, receipt)
	order, _ := args.Get(0).(*models.GatewayOrder)
	call, _ := args.Get(1).(*GatewayCall)
	return order, call, args.Error(2)
}

func (m *mockGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return m.Called(orderID, paymentID, signature).Bool(0)
}

func (m *mockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return m.Called(body, signature).Bool(0)
}

// recordingAuditor keeps every payment audit in memory
type recordingAuditor struct {
	entries []*models.PaymentAudit
}

func (r *recordingAuditor) Log(_ context.Context, audit *models.PaymentAudit) error {
	r.entries = append(r.entries, audit)
	return nil
}

func (r *recordingAuditor) types() []models.PaymentEventType {
	out := make([]models.PaymentEventType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.EventType)
	}
	return out
}

type mockFeedbackStore struct{ mock.Mock }

func (m *mockFeedbackStore) Create(ctx context.Context, fb *models.Feedback) error {
	args := m.Called(ctx, fb)
	if args.Error(0) == nil && fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockFeedbackStore) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Feedback, error) {
	args := m.Called(ctx, bookingID)
	fb, _ := args.Get(0).(*models.Feedback)
	return fb, args.Error(1)
}

func (m *mockFeedbackStore) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error) {
	args := m.Called(ctx, ownerID, limit)
	rows, _ := args.Get(0).([]models.FeedbackListItem)
	return rows, args.Error(1)
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) CreateWithApplication(ctx context.Context, user *models.User, app *models.StallOwnerApplication) error {
	args := m.Called(ctx, user, app)
	if args.Error(0) == nil {
		user.ID = uuid.New()
		if app != nil {
			app.ID = uuid.New()
			app.UserID = user.ID
		}
	}
	return args.Error(0)
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]models.User)
	return rows, args.Error(1)
}

func (m *mockUserStore) UpdateProfile(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) AdminUpdate(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockTokenStore struct{ mock.Mock }

func (m *mockTokenStore) Store(ctx context.Context, userID uuid.UUID, token string, meta database.TokenMeta, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, meta, expiresAt).Error(0)
}

func (m *mockTokenStore) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	args := m.Called(ctx, token)
	rt, _ := args.Get(0).(*models.RefreshToken)
	return rt, args.Error(1)
}

func (m *mockTokenStore) Revoke(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockTokenStore) UpdateLastUsed(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockApplicationStore struct{ mock.Mock }

func (m *mockApplicationStore) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error) {
	args := m.Called(ctx, userID)
	app, _ := args.Get(0).(*models.StallOwnerApplication)
	return app, args.Error(1)
}

func (m *mockApplicationStore) List(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error) {
	args := m.Called(ctx, status)
	rows, _ := args.Get(0).([]models.OwnerApplicationListItem)
	return rows, args.Error(1)
}

func (m *mockApplicationStore) Review(ctx context.Context, appID uuid.UUID, decision models.ApplicationStatus, reviewer string) error {
	return m.Called(ctx, appID, decision, reviewer).Error(0)
}

// nopAuditor satisfies SecurityAuditor and counts calls by action
type nopAuditor struct {
	calls map[string]int
}

func newNopAuditor() *nopAuditor { return &nopAuditor{calls: map[string]int{}} }

func (a *nopAuditor) LogRegistration(context.Context, uuid.UUID, string, string, RequestMeta) error {
	a.calls["register"]++
	return nil
}

func (a *nopAuditor) LogLogin(_ context.Context, _ *uuid.UUID, _ string, success bool, _ string, _ RequestMeta) error {
	if success {
		a.calls["login"]++
	} else {
		a.calls["login_failed"]++
	}
	return nil
}

func (a *nopAuditor) LogLogout(context.Context, uuid.UUID, RequestMeta) error {
	a.calls["logout"]++
	return nil
}

func (a *nopAuditor) LogTokenRefresh(context.Context, uuid.UUID, bool, RequestMeta) error {
	a.calls["refresh"]++
	return nil
}

func (a *nopAuditor) LogAdminAction(_ context.Context, _ uuid.UUID, action, _ string, _ *uuid.UUID, _ map[string]interface{}, _ RequestMeta) error {
	a.calls[action]++
	return nil
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// busyLocker refuses every lock
type busyLocker struct{}

func (busyLocker) Acquire(context.Context, uuid.UUID) (lock.ReleaseFunc, error) {
	return nil, lock.ErrBusy
}

// fixedClock pins time for date-sensitive rules
func fixedClock(date string) Clock {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(10 * time.Hour) }
}

func mustDate(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
