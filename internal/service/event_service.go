package service

import (
	"context"
	"fmt"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventService interface {
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Create(ctx context.Context, user *model.AuthUser, req model.CreateEventRequest) (*model.Event, error)
	Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error)
	Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error
	// Authorize loads the event and checks that user may manage it.
	Authorize(ctx context.Context, user *model.AuthUser, id uuid.UUID) (*model.Event, error)
}

type EventServiceImpl struct {
	events *store.EventStore
	guests *store.GuestStore
	now    func() time.Time
}

func NewEventService(events *store.EventStore, guests *store.GuestStore) EventService {
	return &EventServiceImpl{events: events, guests: guests, now: time.Now}
}

func (s *EventServiceImpl) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	events, err := s.events.Load(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		s.autoComplete(ctx, e)
		// a filter on status must not return events that just completed
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *EventServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	e, err := s.events.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.autoComplete(ctx, e)
	return e, nil
}

// autoComplete applies the time-based completion rule and persists it best-effort.
func (s *EventServiceImpl) autoComplete(ctx context.Context, e *model.Event) {
	if !e.AutoComplete(s.now()) {
		return
	}
	if err := s.events.UpdateStatus(ctx, e.ID, model.EventStatusCompleted); err != nil {
		logger.WithComponent("service").Warn("persist auto-completed event failed",
			zap.String("event_id", e.ID.String()), zap.Error(err))
	}
}

func (s *EventServiceImpl) Create(ctx context.Context, user *model.AuthUser, req model.CreateEventRequest) (*model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if user.Role != model.RoleSuperAdmin && req.OwnerID != user.ID {
		return nil, apperrors.ErrNotEventOwner
	}

	return s.events.Create(ctx, &model.Event{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Venue:       req.Venue,
		OwnerID:     req.OwnerID,
		Status:      req.Status,
	})
}

func (s *EventServiceImpl) Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if _, err := s.Authorize(ctx, user, id); err != nil {
		return nil, err
	}
	return s.events.Update(ctx, id, params)
}

func (s *EventServiceImpl) Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	if _, err := s.Authorize(ctx, user, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}
	s.guests.Evict(id)
	return nil
}

func (s *EventServiceImpl) Authorize(ctx context.Context, user *model.AuthUser, id uuid.UUID) (*model.Event, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.CanManage(e) {
		return nil, apperrors.ErrNotEventOwner
	}
	return e, nil
}
