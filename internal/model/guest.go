package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

type SeatingArea string

const (
	SeatingReserved    SeatingArea = "Reserved"
	SeatingFreeSeating SeatingArea = "Free Seating"
)

type CuisineChoice string

const (
	CuisineTraditional CuisineChoice = "Traditional"
	CuisineWestern     CuisineChoice = "Western"
)

type Guest struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	EventID          uuid.UUID      `json:"eventId" db:"event_id"`
	Name             string         `json:"name" db:"name"`
	Email            *string        `json:"email,omitempty" db:"email"`
	Phone            *string        `json:"phone,omitempty" db:"phone"`
	SeatingArea      *SeatingArea   `json:"seatingArea,omitempty" db:"seating_area"`
	CuisineChoice    *CuisineChoice `json:"cuisineChoice,omitempty" db:"cuisine_choice"`
	UniqueCode       string         `json:"uniqueCode" db:"unique_code"`
	CheckedIn        bool           `json:"checkedIn" db:"checked_in"`
	CheckedInAt      *time.Time     `json:"checkedInAt,omitempty" db:"checked_in_at"`
	CheckedInBy      *string        `json:"checkedInBy,omitempty" db:"checked_in_by"`
	UsherName        *string        `json:"usherName,omitempty" db:"usher_name"`
	UsherEmail       *string        `json:"usherEmail,omitempty" db:"usher_email"`
	Attended         bool           `json:"attended" db:"attended"`
	PhotoURL         *string        `json:"photoUrl,omitempty" db:"photo_url"`
	FirstCheckinAt   *time.Time     `json:"firstCheckinAt,omitempty" db:"first_checkin_at"`
	InvitationSent   bool           `json:"invitationSent" db:"invitation_sent"`
	InvitationSentAt *time.Time     `json:"invitationSentAt,omitempty" db:"invitation_sent_at"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
}

// QRPayload is the value printed into this guest's QR code.
func (g *Guest) QRPayload() QRPayload {
	return QRPayload{EventID: g.EventID.String(), UniqueCode: g.UniqueCode}
}

func (g *Guest) HasPhone() bool {
	return g.Phone != nil && *g.Phone != ""
}

// Usher identifies who performed a check-in.
type Usher struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type CreateGuestRequest struct {
	Name          string         `json:"name"`
	Email         *string        `json:"email"`
	Phone         *string        `json:"phone"`
	SeatingArea   *SeatingArea   `json:"seatingArea"`
	CuisineChoice *CuisineChoice `json:"cuisineChoice"`
	// UniqueCode is only set for imported guests that already hold printed codes.
	UniqueCode string `json:"uniqueCode,omitempty"`
}

func (req *CreateGuestRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.Email, is.Email),
		validation.Field(&req.SeatingArea, validation.In(SeatingReserved, SeatingFreeSeating)),
		validation.Field(&req.CuisineChoice, validation.In(CuisineTraditional, CuisineWestern)),
		validation.Field(&req.UniqueCode, validation.By(validateOptionalCode)),
	)
}

func validateOptionalCode(value interface{}) error {
	code, _ := value.(string)
	if code == "" {
		return nil
	}
	return ValidateUniqueCode(code)
}

type UpdateGuestParams struct {
	Name          *string        `json:"name"`
	Email         *string        `json:"email"`
	Phone         *string        `json:"phone"`
	SeatingArea   *SeatingArea   `json:"seatingArea"`
	CuisineChoice *CuisineChoice `json:"cuisineChoice"`
}

func (p *UpdateGuestParams) Validate() error {
	return validation.ValidateStruct(
		p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.SeatingArea, validation.In(SeatingReserved, SeatingFreeSeating)),
		validation.Field(&p.CuisineChoice, validation.In(CuisineTraditional, CuisineWestern)),
	)
}

// CheckInParams carries the attribution written by a first check-in.
type CheckInParams struct {
	Usher    Usher
	PhotoURL *string
	At       time.Time
}
