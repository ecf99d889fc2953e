package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"event-checkin/internal/export"
	"event-checkin/internal/metrics"
	"event-checkin/internal/model"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type BundleFormat string

const (
	BundlePDF BundleFormat = "pdf"
	BundleZIP BundleFormat = "zip"
)

// BundleGuest is a guest passed inline. With an id it is resolved from the event's
// guest list, otherwise name and code are used as given.
type BundleGuest struct {
	ID         *uuid.UUID `json:"id"`
	Name       string     `json:"name"`
	UniqueCode string     `json:"uniqueCode"`
}

type BundleRequest struct {
	EventID   uuid.UUID     `json:"eventId" binding:"required"`
	GuestIDs  []uuid.UUID   `json:"guestIds"`
	Guests    []BundleGuest `json:"guests"`
	Format    BundleFormat  `json:"format" binding:"required"`
	Confirmed bool          `json:"confirmed"`
}

type BundlePlan struct {
	Event                *model.Event
	Guests               []*model.Guest
	Format               BundleFormat
	Warning              string
	RequiresConfirmation bool
}

func (p *BundlePlan) Filename() string {
	name := slug.Make(p.Event.Title)
	if name == "" {
		name = "event"
	}
	return fmt.Sprintf("%s-qr-codes.%s", name, p.Format)
}

func (p *BundlePlan) ContentType() string {
	if p.Format == BundlePDF {
		return "application/pdf"
	}
	return "application/zip"
}

type BundleService interface {
	// Prepare validates the request and resolves guests. Nothing is rendered yet.
	Prepare(ctx context.Context, user *model.AuthUser, req BundleRequest) (*BundlePlan, error)
	Write(ctx context.Context, w io.Writer, plan *BundlePlan) error
}

type BundleServiceImpl struct {
	events     EventService
	guests     *store.GuestStore
	maxGuests  int
	warnGuests int
}

func NewBundleService(events EventService, guests *store.GuestStore, maxGuests, warnGuests int) BundleService {
	return &BundleServiceImpl{events: events, guests: guests, maxGuests: maxGuests, warnGuests: warnGuests}
}

func (s *BundleServiceImpl) Prepare(ctx context.Context, user *model.AuthUser, req BundleRequest) (*BundlePlan, error) {
	if req.Format != BundlePDF && req.Format != BundleZIP {
		return nil, fmt.Errorf("%w: format must be pdf or zip", apperrors.ErrInvalidInput)
	}

	requested := len(req.GuestIDs) + len(req.Guests)
	if requested > s.maxGuests {
		return nil, fmt.Errorf("%w: %d guests requested, at most %d per bundle", apperrors.ErrBundleTooLarge, requested, s.maxGuests)
	}

	event, err := s.events.Authorize(ctx, user, req.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.guests.EnsureEvent(ctx, event.ID); err != nil {
		return nil, err
	}

	var guests []*model.Guest
	if requested == 0 {
		guests = s.guests.ListByEvent(event.ID)
	} else {
		guests, err = s.resolve(event.ID, req)
		if err != nil {
			return nil, err
		}
	}

	if len(guests) == 0 {
		return nil, fmt.Errorf("%w: no guests to bundle", apperrors.ErrInvalidInput)
	}
	if len(guests) > s.maxGuests {
		return nil, fmt.Errorf("%w: event has %d guests, at most %d per bundle", apperrors.ErrBundleTooLarge, len(guests), s.maxGuests)
	}

	plan := &BundlePlan{Event: event, Guests: guests, Format: req.Format}
	if len(guests) > s.warnGuests {
		plan.Warning = fmt.Sprintf("large bundle: %d guests may take a while to generate", len(guests))
		plan.RequiresConfirmation = !req.Confirmed
	}
	return plan, nil
}

func (s *BundleServiceImpl) resolve(eventID uuid.UUID, req BundleRequest) ([]*model.Guest, error) {
	guests := make([]*model.Guest, 0, len(req.GuestIDs)+len(req.Guests))
	seen := make(map[uuid.UUID]bool)

	add := func(id uuid.UUID) error {
		if seen[id] {
			return nil
		}
		g, ok := s.guests.Get(id)
		if !ok || g.EventID != eventID {
			return fmt.Errorf("%w: %s", apperrors.ErrGuestNotFound, id)
		}
		seen[id] = true
		guests = append(guests, g)
		return nil
	}

	for _, id := range req.GuestIDs {
		if err := add(id); err != nil {
			return nil, err
		}
	}
	for i, bg := range req.Guests {
		if bg.ID != nil {
			if err := add(*bg.ID); err != nil {
				return nil, err
			}
			continue
		}
		if bg.Name == "" {
			return nil, fmt.Errorf("%w: guests[%d] has no name", apperrors.ErrInvalidInput, i)
		}
		if err := model.ValidateUniqueCode(bg.UniqueCode); err != nil {
			return nil, fmt.Errorf("guests[%d]: %w", i, err)
		}
		guests = append(guests, &model.Guest{EventID: eventID, Name: bg.Name, UniqueCode: bg.UniqueCode})
	}
	return guests, nil
}

func (s *BundleServiceImpl) Write(ctx context.Context, w io.Writer, plan *BundlePlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.TrackBundle(string(plan.Format), time.Since(start)) }()

	if plan.Format == BundlePDF {
		return export.WriteBundlePDF(w, plan.Event, plan.Guests)
	}
	return export.WriteBundleZip(w, plan.Event, plan.Guests)
}
