package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const eventColumns = `e.id, e.owner_id, e.name, e.location, e.start_date, e.end_date,
	e.stall_size, e.slot_price, e.total_slots, e.description, e.created_at, e.updated_at`

// EventRepository handles events and the slots (stalls) generated under them
type EventRepository struct {
	db DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateWithSlots inserts the event and stalls for slots 1..TotalSlots in one transaction
func (r *EventRepository) CreateWithSlots(ctx context.Context, event *models.Event) ([]models.Stall, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.SlotPrice = models.RoundMoney(event.SlotPrice)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO events (
			id, owner_id, name, location, start_date, end_date,
			stall_size, slot_price, total_slots, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		event.ID, event.OwnerID, event.Name, event.Location, event.StartDate, event.EndDate,
		event.StallSize, event.SlotPrice, event.TotalSlots, event.Description,
	).Scan(&event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slots := make([]models.Stall, 0, event.TotalSlots)
	for n := 1; n <= event.TotalSlots; n++ {
		slot := n
		stall := models.Stall{
			ID:          uuid.New(),
			EventID:     uuid.NullUUID{UUID: event.ID, Valid: true},
			SlotNumber:  &slot,
			Name:        models.SlotName(event.Name, slot),
			Location:    event.Location,
			Size:        event.StallSize,
			RentPerDay:  event.SlotPrice,
			Description: event.Description,
			Status:      models.StallStatusAvailable,
			OwnerID:     event.OwnerID,
			CreatedAt:   event.CreatedAt,
		}
		if err := insertStall(ctx, tx, &stall); err != nil {
			return nil, err
		}
		slots = append(slots, stall)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event: %w", err)
	}
	return slots, nil
}

// AddSlot inserts one more slot under an event and bumps its slot count
func (r *EventRepository) AddSlot(ctx context.Context, stall *models.Stall) error {
	if !stall.EventID.Valid {
		return fmt.Errorf("slot requires an event")
	}
	if stall.ID == uuid.Nil {
		stall.ID = uuid.New()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertStall(ctx, tx, stall); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE events SET total_slots = total_slots + 1, updated_at = NOW() WHERE id = $1`,
		stall.EventID.UUID)
	if err != nil {
		return fmt.Errorf("failed to update event slot count: %w", err)
	}

	return tx.Commit()
}

func insertStall(ctx context.Context, tx *sqlx.Tx, stall *models.Stall) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stalls (
			id, event_id, slot_number, name, location, size,
			rent_per_day, description, status, owner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		stall.ID, stall.EventID, stall.SlotNumber, stall.Name, stall.Location, stall.Size,
		models.RoundMoney(stall.RentPerDay), stall.Description, stall.Status, stall.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot %d already exists", models.ErrAlreadyExists, derefInt(stall.SlotNumber))
		}
		return fmt.Errorf("failed to insert stall: %w", err)
	}
	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: event %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

// List returns events ordered by start date, optionally filtered by a
// case-insensitive match on name or location.
func (r *EventRepository) List(ctx context.Context, search string) ([]models.EventListItem, error) {
	query := `
		SELECT ` + eventColumns + `,
			COUNT(s.id) AS slot_count,
			COUNT(s.id) FILTER (WHERE s.status = 'Available') AS available_slots
		FROM events e
		LEFT JOIN stalls s ON s.event_id = e.id
		WHERE ($1::text = '' OR e.name ILIKE $2 OR e.location ILIKE $2)
		GROUP BY e.id
		ORDER BY e.start_date, e.name
	`
	items := []models.EventListItem{}
	if err := r.db.SelectContext(ctx, &items, query, search, ilikePattern(search)); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return items, nil
}

// ListByOwner returns the owner's events, newest first
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error) {
	query := `
		SELECT ` + eventColumns + `,
			COUNT(s.id) AS slot_count,
			COUNT(s.id) FILTER (WHERE s.status = 'Available') AS available_slots
		FROM events e
		LEFT JOIN stalls s ON s.event_id = e.id
		WHERE e.owner_id = $1
		GROUP BY e.id
		ORDER BY e.start_date DESC
	`
	items := []models.EventListItem{}
	if err := r.db.SelectContext(ctx, &items, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list owner events: %w", err)
	}
	return items, nil
}

// ListSlots returns an event's stalls ordered by slot number
func (r *EventRepository) ListSlots(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error) {
	slots := []models.Stall{}
	query := `SELECT ` + stallColumns + ` FROM stalls s
		WHERE s.event_id = $1
		ORDER BY s.slot_number NULLS LAST, s.name`
	if err := r.db.SelectContext(ctx, &slots, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list event slots: %w", err)
	}
	return slots, nil
}

// NextSlotNumber returns the smallest positive slot number not yet used by the event
func (r *EventRepository) NextSlotNumber(ctx context.Context, eventID uuid.UUID) (int, error) {
	var used []int
	err := r.db.SelectContext(ctx, &used,
		`SELECT slot_number FROM stalls WHERE event_id = $1 AND slot_number IS NOT NULL ORDER BY slot_number`,
		eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to read slot numbers: %w", err)
	}
	return FirstFreeSlot(used), nil
}

// FirstFreeSlot finds the first gap in an ascending list of slot numbers
func FirstFreeSlot(sorted []int) int {
	next := 1
	for _, n := range sorted {
		if n < next {
			continue
		}
		if n > next {
			break
		}
		next++
	}
	return next
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
