package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StallStatus is the availability state of a stall
type StallStatus string

const (
	StallStatusAvailable   StallStatus = "Available"
	StallStatusBooked      StallStatus = "Booked"
	StallStatusMaintenance StallStatus = "Maintenance"
)

// IsValid checks the status is one of the known values
func (s StallStatus) IsValid() bool {
	switch s {
	case StallStatusAvailable, StallStatusBooked, StallStatusMaintenance:
		return true
	}
	return false
}

// Stall is a bookable exhibition unit, optionally a numbered slot of an Event
type Stall struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	EventID     uuid.NullUUID `json:"event_id" db:"event_id"`
	SlotNumber  *int          `json:"slot_number,omitempty" db:"slot_number"`
	Name        string        `json:"name" db:"name"`
	Location    string        `json:"location" db:"location"`
	Size        string        `json:"size" db:"size"`
	RentPerDay  float64       `json:"rent_per_day" db:"rent_per_day"`
	Description string        `json:"description" db:"description"`
	Status      StallStatus   `json:"status" db:"status"`
	OwnerID     uuid.UUID     `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   NullTime      `json:"updated_at" db:"updated_at"`
}

// SlotName builds the default name of a generated event slot
func SlotName(eventName string, slot int) string {
	return fmt.Sprintf("%s · Slot %d", eventName, slot)
}

// Event groups a numbered set of stalls under one exhibition
type Event struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	StallSize   string    `json:"stall_size" db:"stall_size"`
	SlotPrice   float64   `json:"slot_price" db:"slot_price"`
	TotalSlots  int       `json:"total_slots" db:"total_slots"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   NullTime  `json:"updated_at" db:"updated_at"`
}

// EventListItem is an event row in the public catalog
type EventListItem struct {
	Event
	SlotCount      int `json:"slot_count" db:"slot_count"`
	AvailableSlots int `json:"available_slots" db:"available_slots"`
}

// EventDetails is the public view of an event and its slots
type EventDetails struct {
	Event          *Event  `json:"event"`
	Slots          []Stall `json:"slots"`
	AvailableSlots int     `json:"available_slots"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// CreateEventRequest is the payload for creating an event with generated slots
type CreateEventRequest struct {
	Name        string  `json:"name" binding:"required,max=150"`
	Location    string  `json:"location" binding:"required,max=150"`
	StartDate   string  `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate     string  `json:"end_date" binding:"required"`   // YYYY-MM-DD
	StallSize   string  `json:"stall_size" binding:"max=100"`
	SlotPrice   float64 `json:"slot_price" binding:"gte=0,lte=1000000"`
	TotalSlots  int     `json:"total_slots" binding:"required,slotcount"`
	Description string  `json:"description" binding:"max=1000"`
}

// AddSlotRequest is the payload for adding one slot to an event
type AddSlotRequest struct {
	SlotNumber  *int        `json:"slot_number" binding:"omitempty,gte=1"`
	Name        string      `json:"name" binding:"max=100"`
	Location    string      `json:"location" binding:"max=150"`
	Size        string      `json:"size" binding:"max=100"`
	RentPerDay  float64     `json:"rent_per_day" binding:"gte=0,lte=1000000"`
	Description string      `json:"description" binding:"max=500"`
	Status      StallStatus `json:"status"`
}

// StallRequest is the payload for creating or editing a stall
type StallRequest struct {
	Name        string      `json:"name" binding:"required,max=100"`
	Location    string      `json:"location" binding:"required,max=150"`
	Size        string      `json:"size" binding:"max=100"`
	RentPerDay  float64     `json:"rent_per_day" binding:"gte=0,lte=1000000"`
	Description string      `json:"description" binding:"max=500"`
	Status      StallStatus `json:"status"`
	OwnerID     *uuid.UUID  `json:"owner_id,omitempty"` // admin create only
}
