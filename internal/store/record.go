package store

import (
	"encoding/json"
	"fmt"

	"event-checkin/internal/model"

	"github.com/google/uuid"
)

// Record is a row as delivered by a change notification: column name to JSON value.
type Record map[string]json.RawMessage

func (r Record) UUID(column string) (uuid.UUID, error) {
	raw, ok := r[column]
	if !ok {
		return uuid.Nil, fmt.Errorf("record has no %s", column)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return uuid.Parse(s)
}

// PatchGuest copies the columns present in fields onto g. Absent columns are untouched.
func PatchGuest(g *model.Guest, fields Record) error {
	for column, raw := range fields {
		var err error
		switch column {
		case "name":
			err = json.Unmarshal(raw, &g.Name)
		case "email":
			err = setPtr(&g.Email, raw)
		case "phone":
			err = setPtr(&g.Phone, raw)
		case "seating_area":
			err = setPtr(&g.SeatingArea, raw)
		case "cuisine_choice":
			err = setPtr(&g.CuisineChoice, raw)
		case "unique_code":
			err = json.Unmarshal(raw, &g.UniqueCode)
		case "checked_in":
			err = json.Unmarshal(raw, &g.CheckedIn)
		case "checked_in_at":
			err = setPtr(&g.CheckedInAt, raw)
		case "checked_in_by":
			err = setPtr(&g.CheckedInBy, raw)
		case "usher_name":
			err = setPtr(&g.UsherName, raw)
		case "usher_email":
			err = setPtr(&g.UsherEmail, raw)
		case "attended":
			err = json.Unmarshal(raw, &g.Attended)
		case "photo_url":
			err = setPtr(&g.PhotoURL, raw)
		case "first_checkin_at":
			err = setPtr(&g.FirstCheckinAt, raw)
		case "invitation_sent":
			err = json.Unmarshal(raw, &g.InvitationSent)
		case "invitation_sent_at":
			err = setPtr(&g.InvitationSentAt, raw)
		case "created_at":
			err = json.Unmarshal(raw, &g.CreatedAt)
		}
		if err != nil {
			return fmt.Errorf("patch guest %s: %w", column, err)
		}
	}
	return nil
}

func GuestFromRecord(fields Record) (*model.Guest, error) {
	id, err := fields.UUID("id")
	if err != nil {
		return nil, err
	}
	eventID, err := fields.UUID("event_id")
	if err != nil {
		return nil, err
	}
	g := &model.Guest{ID: id, EventID: eventID}
	if err := PatchGuest(g, fields); err != nil {
		return nil, err
	}
	return g, nil
}

func PatchEvent(e *model.Event, fields Record) error {
	for column, raw := range fields {
		var err error
		switch column {
		case "title":
			err = json.Unmarshal(raw, &e.Title)
		case "description":
			err = setPtr(&e.Description, raw)
		case "starts_at":
			err = json.Unmarshal(raw, &e.StartsAt)
		case "venue":
			err = setPtr(&e.Venue, raw)
		case "owner_id":
			err = json.Unmarshal(raw, &e.OwnerID)
		case "status":
			err = json.Unmarshal(raw, &e.Status)
		case "total_guests":
			err = json.Unmarshal(raw, &e.TotalGuests)
		case "checked_in_guests":
			err = json.Unmarshal(raw, &e.CheckedInGuests)
		case "created_at":
			err = json.Unmarshal(raw, &e.CreatedAt)
		case "updated_at":
			err = json.Unmarshal(raw, &e.UpdatedAt)
		}
		if err != nil {
			return fmt.Errorf("patch event %s: %w", column, err)
		}
	}
	return nil
}

func EventFromRecord(fields Record) (*model.Event, error) {
	id, err := fields.UUID("id")
	if err != nil {
		return nil, err
	}
	e := &model.Event{ID: id}
	if err := PatchEvent(e, fields); err != nil {
		return nil, err
	}
	return e, nil
}

// setPtr decodes into a fresh value so a patched copy never writes through a
// pointer it shares with the original record.
func setPtr[T any](dst **T, raw json.RawMessage) error {
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}
