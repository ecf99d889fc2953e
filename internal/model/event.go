package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
)

// AutoCompleteAfter is how long past its start an active event stays open.
const AutoCompleteAfter = 24 * time.Hour

func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusDraft, EventStatusActive, EventStatusCompleted:
		return true
	}
	return false
}

type Event struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Title           string      `json:"title" db:"title"`
	Description     *string     `json:"description,omitempty" db:"description"`
	StartsAt        time.Time   `json:"startsAt" db:"starts_at"`
	Venue           *string     `json:"venue,omitempty" db:"venue"`
	OwnerID         string      `json:"ownerId" db:"owner_id"`
	Status          EventStatus `json:"status" db:"status"`
	TotalGuests     int         `json:"totalGuests" db:"total_guests"`
	CheckedInGuests int         `json:"checkedInGuests" db:"checked_in_guests"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
}

// AutoComplete promotes an active event to completed once AutoCompleteAfter has
// elapsed since its start. Draft and completed events are left alone.
func (e *Event) AutoComplete(now time.Time) bool {
	if e.Status != EventStatusActive {
		return false
	}
	if now.Before(e.StartsAt.Add(AutoCompleteAfter)) {
		return false
	}
	e.Status = EventStatusCompleted
	return true
}

type EventFilter struct {
	OwnerID     string
	Status      EventStatus
	StartsAfter *time.Time
}

type CreateEventRequest struct {
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	StartsAt    time.Time   `json:"startsAt"`
	Venue       *string     `json:"venue"`
	OwnerID     string      `json:"ownerId"`
	Status      EventStatus `json:"status"`
}

func (req *CreateEventRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.StartsAt, validation.Required),
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Status, validation.Required,
			validation.In(EventStatusDraft, EventStatusActive, EventStatusCompleted)),
	)
}

type UpdateEventParams struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	StartsAt    *time.Time   `json:"startsAt"`
	Venue       *string      `json:"venue"`
	Status      *EventStatus `json:"status"`
}

func (p *UpdateEventParams) Validate() error {
	return validation.ValidateStruct(
		p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Status,
			validation.In(EventStatusDraft, EventStatusActive, EventStatusCompleted)),
	)
}
