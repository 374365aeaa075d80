package services

import (
	"context"
	"testing"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupStallTest() (*StallService, *mockStallStore, *mockEventStore) {
	stalls := &mockStallStore{}
	events := &mockEventStore{}
	return NewStallService(stalls, events, quietLogger()), stalls, events
}

func TestParseDateRange(t *testing.T) {
	start, end, err := ParseDateRange("2024-01-01", " 2024-01-03 ")
	require.NoError(t, err)
	assert.Equal(t, 3, models.BookedDays(start, end))

	_, _, err = ParseDateRange("2024-01-03", "2024-01-01")
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	_, _, err = ParseDateRange("01/01/2024", "2024-01-01")
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	_, _, err = ParseDateRange("2024-01-01", "2024-01-01")
	assert.NoError(t, err)
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	svc, _, events := setupStallTest()
	ownerID := uuid.New()

	events.On("CreateWithSlots", ctx, mock.MatchedBy(func(e *models.Event) bool {
		return e.OwnerID == ownerID && e.TotalSlots == 3 && e.Name == "Spring Expo"
	})).Return([]models.Stall{{}, {}, {}}, nil)

	event, slots, err := svc.CreateEvent(ctx, ownerID, &models.CreateEventRequest{
		Name: " Spring Expo ", Location: "Hall 1", StartDate: "2024-04-01", EndDate: "2024-04-05",
		SlotPrice: 120, TotalSlots: 3,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Len(t, slots, 3)

	_, _, err = svc.CreateEvent(ctx, ownerID, &models.CreateEventRequest{
		Name: "Too Big", StartDate: "2024-04-01", EndDate: "2024-04-05", TotalSlots: 1001,
	})
	assert.ErrorIs(t, err, models.ErrInvalidRange)
}

func TestAddSlot(t *testing.T) {
	ctx := context.Background()
	svc, _, events := setupStallTest()
	ownerID := uuid.New()
	event := &models.Event{ID: uuid.New(), OwnerID: ownerID, Name: "Spring Expo", Location: "Hall 1", StallSize: "3x3", SlotPrice: 120}
	events.On("GetByID", ctx, event.ID).Return(event, nil)

	t.Run("Defaults From Event", func(t *testing.T) {
		events.On("NextSlotNumber", ctx, event.ID).Return(4, nil).Once()
		events.On("AddSlot", ctx, mock.Anything).Return(nil).Once()

		stall, err := svc.AddSlot(ctx, Caller{ID: ownerID}, event.ID, &models.AddSlotRequest{})
		require.NoError(t, err)
		assert.Equal(t, 4, *stall.SlotNumber)
		assert.Equal(t, models.SlotName("Spring Expo", 4), stall.Name)
		assert.Equal(t, "Hall 1", stall.Location)
		assert.Equal(t, 120.0, stall.RentPerDay)
		assert.Equal(t, models.StallStatusAvailable, stall.Status)
		assert.True(t, stall.EventID.Valid)
	})

	t.Run("Other Owner", func(t *testing.T) {
		_, err := svc.AddSlot(ctx, Caller{ID: uuid.New()}, event.ID, &models.AddSlotRequest{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Unknown Status", func(t *testing.T) {
		n := 9
		_, err := svc.AddSlot(ctx, Caller{ID: ownerID}, event.ID, &models.AddSlotRequest{SlotNumber: &n, Status: "Closed"})
		assert.ErrorIs(t, err, models.ErrInvalidRange)
	})
}

func TestUpdateAndDeleteStall(t *testing.T) {
	ctx := context.Background()
	svc, stalls, _ := setupStallTest()
	ownerID := uuid.New()
	stall := &models.Stall{ID: uuid.New(), OwnerID: ownerID, Status: models.StallStatusAvailable}
	stalls.On("GetByID", ctx, stall.ID).Return(stall, nil)

	t.Run("Stranger Cannot Update", func(t *testing.T) {
		_, err := svc.UpdateStall(ctx, Caller{ID: uuid.New()}, stall.ID, &models.StallRequest{Name: "x"})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Admin Can Update", func(t *testing.T) {
		stalls.On("Update", ctx, mock.Anything).Return(nil).Once()
		updated, err := svc.UpdateStall(ctx, Caller{ID: uuid.New(), Roles: []string{models.RoleAdmin}}, stall.ID,
			&models.StallRequest{Name: " Corner ", Location: "Hall 2", RentPerDay: 90, Status: models.StallStatusMaintenance})
		require.NoError(t, err)
		assert.Equal(t, "Corner", updated.Name)
		assert.Equal(t, models.StallStatusMaintenance, updated.Status)
	})

	t.Run("Owner Can Delete", func(t *testing.T) {
		stalls.On("Delete", ctx, stall.ID).Return(nil).Once()
		assert.NoError(t, svc.DeleteStall(ctx, Caller{ID: ownerID}, stall.ID))
	})
}

func TestAuthorize(t *testing.T) {
	owner := uuid.New()
	assert.NoError(t, Authorize(Caller{ID: owner}, owner))
	assert.NoError(t, Authorize(Caller{ID: uuid.New(), Roles: []string{models.RoleAdmin}}, owner))
	assert.ErrorIs(t, Authorize(Caller{ID: uuid.New(), Roles: []string{models.RoleStallOwner}}, owner), models.ErrForbidden)
}
