package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/easexpo/marketplace-backend/internal/middleware"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/easexpo/marketplace-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterBindings(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// asUser stands in for AuthMiddleware
func asUser(id uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, &middleware.UserContext{UserID: id, Email: "user@example.com", Roles: roles})
		c.Next()
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return resp
}

type mockAccountAPI struct{ mock.Mock }

func (m *mockAccountAPI) Register(ctx context.Context, req *models.RegisterRequest, meta services.RequestMeta) (*services.RegisterResult, error) {
	args := m.Called(ctx, req, meta)
	r, _ := args.Get(0).(*services.RegisterResult)
	return r, args.Error(1)
}

func (m *mockAccountAPI) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.AuthResponse, error) {
	args := m.Called(ctx, email, password, meta)
	r, _ := args.Get(0).(*models.AuthResponse)
	return r, args.Error(1)
}

func (m *mockAccountAPI) Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.AuthResponse, error) {
	args := m.Called(ctx, refreshToken, meta)
	r, _ := args.Get(0).(*models.AuthResponse)
	return r, args.Error(1)
}

func (m *mockAccountAPI) Logout(ctx context.Context, refreshToken string, meta services.RequestMeta) error {
	return m.Called(ctx, refreshToken, meta).Error(0)
}

func (m *mockAccountAPI) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.User)
	return r, args.Error(1)
}

func (m *mockAccountAPI) UpdateProfile(ctx context.Context, userID uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	args := m.Called(ctx, userID, req)
	r, _ := args.Get(0).(*models.User)
	return r, args.Error(1)
}

func (m *mockAccountAPI) OwnerApplicationStatus(ctx context.Context, userID uuid.UUID) (*models.StallOwnerApplication, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.StallOwnerApplication)
	return r, args.Error(1)
}

type mockBookingAPI struct{ mock.Mock }

func (m *mockBookingAPI) Create(ctx context.Context, customerID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingListItem, error) {
	args := m.Called(ctx, customerID, req)
	r, _ := args.Get(0).(*models.BookingListItem)
	return r, args.Error(1)
}

func (m *mockBookingAPI) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.BookingListItem, error) {
	args := m.Called(ctx, customerID)
	r, _ := args.Get(0).([]models.BookingListItem)
	return r, args.Error(1)
}

func (m *mockBookingAPI) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookingListItem, error) {
	args := m.Called(ctx, ownerID)
	r, _ := args.Get(0).([]models.BookingListItem)
	return r, args.Error(1)
}

func (m *mockBookingAPI) GetForOwner(ctx context.Context, caller services.Caller, bookingID uuid.UUID) (*models.BookingDetail, error) {
	args := m.Called(ctx, caller, bookingID)
	r, _ := args.Get(0).(*models.BookingDetail)
	return r, args.Error(1)
}

func (m *mockBookingAPI) Approve(ctx context.Context, bookingID, ownerID uuid.UUID) error {
	return m.Called(ctx, bookingID, ownerID).Error(0)
}

func (m *mockBookingAPI) Reject(ctx context.Context, bookingID, ownerID uuid.UUID) error {
	return m.Called(ctx, bookingID, ownerID).Error(0)
}

type mockFeedbackAPI struct{ mock.Mock }

func (m *mockFeedbackAPI) Submit(ctx context.Context, bookingID, customerID uuid.UUID, req *models.SubmitFeedbackRequest) (*models.Feedback, error) {
	args := m.Called(ctx, bookingID, customerID, req)
	r, _ := args.Get(0).(*models.Feedback)
	return r, args.Error(1)
}

func (m *mockFeedbackAPI) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.FeedbackListItem, error) {
	args := m.Called(ctx, ownerID, limit)
	r, _ := args.Get(0).([]models.FeedbackListItem)
	return r, args.Error(1)
}

type mockPaymentAPI struct{ mock.Mock }

func (m *mockPaymentAPI) Initiate(ctx context.Context, bookingID, customerID uuid.UUID, meta services.RequestMeta) (*models.CheckoutResponse, error) {
	args := m.Called(ctx, bookingID, customerID, meta)
	r, _ := args.Get(0).(*models.CheckoutResponse)
	return r, args.Error(1)
}

func (m *mockPaymentAPI) Confirm(ctx context.Context, bookingID, customerID uuid.UUID, req *models.ConfirmPaymentRequest, meta services.RequestMeta) (*models.ConfirmResult, error) {
	args := m.Called(ctx, bookingID, customerID, req, meta)
	r, _ := args.Get(0).(*models.ConfirmResult)
	return r, args.Error(1)
}

func (m *mockPaymentAPI) HandleWebhook(ctx context.Context, body []byte, signature string, meta services.RequestMeta) (*models.ConfirmResult, error) {
	args := m.Called(ctx, body, signature, meta)
	r, _ := args.Get(0).(*models.ConfirmResult)
	return r, args.Error(1)
}

type mockSuspiciousLogger struct{ mock.Mock }

func (m *mockSuspiciousLogger) LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, activity string, details map[string]interface{}, meta services.RequestMeta) error {
	return m.Called(ctx, userID, activity, details, meta).Error(0)
}

type mockApplicationReviewAPI struct{ mock.Mock }

func (m *mockApplicationReviewAPI) ListApplications(ctx context.Context, status models.ApplicationStatus) ([]models.OwnerApplicationListItem, error) {
	args := m.Called(ctx, status)
	r, _ := args.Get(0).([]models.OwnerApplicationListItem)
	return r, args.Error(1)
}

func (m *mockApplicationReviewAPI) Approve(ctx context.Context, admin services.Caller, appID uuid.UUID, meta services.RequestMeta) error {
	return m.Called(ctx, admin, appID, meta).Error(0)
}

func (m *mockApplicationReviewAPI) Reject(ctx context.Context, admin services.Caller, appID uuid.UUID, meta services.RequestMeta) error {
	return m.Called(ctx, admin, appID, meta).Error(0)
}

type mockStallAPI struct{ mock.Mock }

func (m *mockStallAPI) ListEvents(ctx context.Context, search string) ([]models.EventListItem, error) {
	args := m.Called(ctx, search)
	r, _ := args.Get(0).([]models.EventListItem)
	return r, args.Error(1)
}

func (m *mockStallAPI) GetEventDetails(ctx context.Context, id uuid.UUID) (*models.EventDetails, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.EventDetails)
	return r, args.Error(1)
}

func (m *mockStallAPI) CreateEvent(ctx context.Context, ownerID uuid.UUID, req *models.CreateEventRequest) (*models.Event, []models.Stall, error) {
	args := m.Called(ctx, ownerID, req)
	e, _ := args.Get(0).(*models.Event)
	s, _ := args.Get(1).([]models.Stall)
	return e, s, args.Error(2)
}

func (m *mockStallAPI) AddSlot(ctx context.Context, caller services.Caller, eventID uuid.UUID, req *models.AddSlotRequest) (*models.Stall, error) {
	args := m.Called(ctx, caller, eventID, req)
	r, _ := args.Get(0).(*models.Stall)
	return r, args.Error(1)
}

func (m *mockStallAPI) ListOwnerEvents(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error) {
	args := m.Called(ctx, ownerID)
	r, _ := args.Get(0).([]models.EventListItem)
	return r, args.Error(1)
}

func (m *mockStallAPI) ListOwnerStalls(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error) {
	args := m.Called(ctx, ownerID)
	r, _ := args.Get(0).([]models.Stall)
	return r, args.Error(1)
}

func (m *mockStallAPI) ListAllStalls(ctx context.Context) ([]models.Stall, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]models.Stall)
	return r, args.Error(1)
}

func (m *mockStallAPI) CreateStall(ctx context.Context, ownerID uuid.UUID, req *models.StallRequest) (*models.Stall, error) {
	args := m.Called(ctx, ownerID, req)
	r, _ := args.Get(0).(*models.Stall)
	return r, args.Error(1)
}

func (m *mockStallAPI) UpdateStall(ctx context.Context, caller services.Caller, id uuid.UUID, req *models.StallRequest) (*models.Stall, error) {
	args := m.Called(ctx, caller, id, req)
	r, _ := args.Get(0).(*models.Stall)
	return r, args.Error(1)
}

func (m *mockStallAPI) DeleteStall(ctx context.Context, caller services.Caller, id uuid.UUID) error {
	return m.Called(ctx, caller, id).Error(0)
}
