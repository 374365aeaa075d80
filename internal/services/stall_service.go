package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StallStore is the stall persistence used by StallService
type StallStore interface {
	Create(ctx context.Context, stall *models.Stall) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stall, error)
	Update(ctx context.Context, stall *models.Stall) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.StallStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error)
	ListAll(ctx context.Context) ([]models.Stall, error)
	ReleaseEnded(ctx context.Context, today string) (int64, error)
}

// EventStore is the event and slot persistence used by StallService
type EventStore interface {
	CreateWithSlots(ctx context.Context, event *models.Event) ([]models.Stall, error)
	AddSlot(ctx context.Context, stall *models.Stall) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, search string) ([]models.EventListItem, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error)
	ListSlots(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error)
	NextSlotNumber(ctx context.Context, eventID uuid.UUID) (int, error)
}

// StallService manages events, their slots and flat marketplace stalls
type StallService struct {
	stalls StallStore
	events EventStore
	logger *logrus.Logger
}

// NewStallService creates a new StallService
func NewStallService(stalls StallStore, events EventStore, logger *logrus.Logger) *StallService {
	return &StallService{stalls: stalls, events: events, logger: logger}
}

// ParseDateRange parses two YYYY-MM-DD dates and requires end >= start
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(models.DateLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date must be YYYY-MM-DD", models.ErrInvalidRange)
	}
	e, err := time.Parse(models.DateLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date must be YYYY-MM-DD", models.ErrInvalidRange)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date is before start date", models.ErrInvalidRange)
	}
	return s, e, nil
}

// Get returns one stall
func (s *StallService) Get(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	return s.stalls.GetByID(ctx, id)
}

// SetStatus changes a stall's availability
func (s *StallService) SetStatus(ctx context.Context, id uuid.UUID, status models.StallStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown stall status %q", models.ErrInvalidRange, status)
	}
	return s.stalls.SetStatus(ctx, id, status)
}

// CreateEvent inserts an event and generates its numbered slots
func (s *StallService) CreateEvent(ctx context.Context, ownerID uuid.UUID, req *models.CreateEventRequest) (*models.Event, []models.Stall, error) {
	start, end, err := ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, nil, err
	}
	if req.TotalSlots < 1 || req.TotalSlots > 1000 {
		return nil, nil, fmt.Errorf("%w: total slots must be between 1 and 1000", models.ErrInvalidRange)
	}

	event := &models.Event{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Location:    strings.TrimSpace(req.Location),
		StartDate:   start,
		EndDate:     end,
		StallSize:   strings.TrimSpace(req.StallSize),
		SlotPrice:   req.SlotPrice,
		TotalSlots:  req.TotalSlots,
		Description: strings.TrimSpace(req.Description),
	}
	slots, err := s.events.CreateWithSlots(ctx, event)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"owner_id": ownerID,
		"slots":    len(slots),
	}).Info("Event created")
	return event, slots, nil
}

// AddSlot appends one slot to an event the caller owns. Blank fields fall
// back to the event's defaults.
func (s *StallService) AddSlot(ctx context.Context, caller Caller, eventID uuid.UUID, req *models.AddSlotRequest) (*models.Stall, error) {
	event, err := s.ownedEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}

	slotNumber := 0
	if req.SlotNumber != nil {
		slotNumber = *req.SlotNumber
	} else {
		slotNumber, err = s.events.NextSlotNumber(ctx, eventID)
		if err != nil {
			return nil, err
		}
	}

	status := req.Status
	if status == "" {
		status = models.StallStatusAvailable
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown stall status %q", models.ErrInvalidRange, status)
	}

	stall := &models.Stall{
		EventID:     uuid.NullUUID{UUID: event.ID, Valid: true},
		SlotNumber:  &slotNumber,
		Name:        orDefault(req.Name, models.SlotName(event.Name, slotNumber)),
		Location:    orDefault(req.Location, event.Location),
		Size:        orDefault(req.Size, event.StallSize),
		RentPerDay:  req.RentPerDay,
		Description: orDefault(req.Description, event.Description),
		Status:      status,
		OwnerID:     event.OwnerID,
	}
	if stall.RentPerDay <= 0 {
		stall.RentPerDay = event.SlotPrice
	}

	if err := s.events.AddSlot(ctx, stall); err != nil {
		return nil, err
	}
	return stall, nil
}

// CreateStall adds a flat marketplace stall owned by ownerID
func (s *StallService) CreateStall(ctx context.Context, ownerID uuid.UUID, req *models.StallRequest) (*models.Stall, error) {
	status := req.Status
	if status == "" {
		status = models.StallStatusAvailable
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown stall status %q", models.ErrInvalidRange, status)
	}

	stall := &models.Stall{
		Name:        strings.TrimSpace(req.Name),
		Location:    strings.TrimSpace(req.Location),
		Size:        strings.TrimSpace(req.Size),
		RentPerDay:  req.RentPerDay,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		OwnerID:     ownerID,
	}
	if err := s.stalls.Create(ctx, stall); err != nil {
		return nil, err
	}
	return stall, nil
}

// UpdateStall edits a stall owned by the caller (or any stall for admins)
func (s *StallService) UpdateStall(ctx context.Context, caller Caller, id uuid.UUID, req *models.StallRequest) (*models.Stall, error) {
	stall, err := s.stalls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(caller, stall.OwnerID); err != nil {
		return nil, err
	}

	if req.Status != "" {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown stall status %q", models.ErrInvalidRange, req.Status)
		}
		stall.Status = req.Status
	}
	stall.Name = strings.TrimSpace(req.Name)
	stall.Location = strings.TrimSpace(req.Location)
	stall.Size = strings.TrimSpace(req.Size)
	stall.RentPerDay = req.RentPerDay
	stall.Description = strings.TrimSpace(req.Description)

	if err := s.stalls.Update(ctx, stall); err != nil {
		return nil, err
	}
	return stall, nil
}

// DeleteStall removes a stall that has never been booked
func (s *StallService) DeleteStall(ctx context.Context, caller Caller, id uuid.UUID) error {
	stall, err := s.stalls.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(caller, stall.OwnerID); err != nil {
		return err
	}
	if err := s.stalls.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"stall_id": id, "caller_id": caller.ID}).Info("Stall deleted")
	return nil
}

// ListEvents returns the public catalog, optionally filtered by name or location
func (s *StallService) ListEvents(ctx context.Context, search string) ([]models.EventListItem, error) {
	return s.events.List(ctx, strings.TrimSpace(search))
}

// GetEventDetails returns an event with its slots in slot order
func (s *StallService) GetEventDetails(ctx context.Context, id uuid.UUID) (*models.EventDetails, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.events.ListSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EventDetails{
		Event:          event,
		Slots:          slots,
		AvailableSlots: countStatus(slots, models.StallStatusAvailable),
	}, nil
}

// ListOwnerEvents returns the caller's events
func (s *StallService) ListOwnerEvents(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error) {
	return s.events.ListByOwner(ctx, ownerID)
}

// ListOwnerStalls returns every stall the owner holds
func (s *StallService) ListOwnerStalls(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error) {
	return s.stalls.ListByOwner(ctx, ownerID)
}

// ListAllStalls returns every stall for administrators
func (s *StallService) ListAllStalls(ctx context.Context) ([]models.Stall, error) {
	return s.stalls.ListAll(ctx)
}

// ownedEvent loads an event and hides it from anyone but its owner or an admin
func (s *StallService) ownedEvent(ctx context.Context, caller Caller, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if Authorize(caller, event.OwnerID) != nil {
		return nil, fmt.Errorf("%w: event %s", models.ErrNotFound, eventID)
	}
	return event, nil
}

func countStatus(stalls []models.Stall, status models.StallStatus) int {
	n := 0
	for _, st := range stalls {
		if st.Status == status {
			n++
		}
	}
	return n
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
