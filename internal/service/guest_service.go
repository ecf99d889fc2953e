package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"event-checkin/internal/model"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const codeAttempts = 5

// RowError describes one rejected line of an imported guest list.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportError struct {
	Rows []RowError
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%d invalid rows in guest import", len(e.Rows))
}

func (e *ImportError) Unwrap() error { return apperrors.ErrInvalidInput }

type GuestService interface {
	List(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) ([]*model.Guest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Guest, error)
	Create(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, req model.CreateGuestRequest) (*model.Guest, error)
	// Import creates all rows of a CSV guest list or none of them.
	Import(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, r io.Reader) ([]*model.Guest, error)
	Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error)
	Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error
	DeleteBulk(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type GuestServiceImpl struct {
	events EventService
	store  *store.GuestStore
	counts *store.EventStore
}

func NewGuestService(events EventService, guests *store.GuestStore, eventStore *store.EventStore) GuestService {
	return &GuestServiceImpl{events: events, store: guests, counts: eventStore}
}

func (s *GuestServiceImpl) List(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) ([]*model.Guest, error) {
	if err := s.authorizeRead(ctx, user, eventID); err != nil {
		return nil, err
	}
	if err := s.store.EnsureEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListByEvent(eventID), nil
}

// authorizeRead lets ushers see any guest list; they need it at the door.
func (s *GuestServiceImpl) authorizeRead(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) error {
	if user.Role == model.RoleUsher {
		_, err := s.events.Get(ctx, eventID)
		return err
	}
	_, err := s.events.Authorize(ctx, user, eventID)
	return err
}

func (s *GuestServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	return s.store.Fetch(ctx, id)
}

func (s *GuestServiceImpl) Create(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, req model.CreateGuestRequest) (*model.Guest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if _, err := s.events.Authorize(ctx, user, eventID); err != nil {
		return nil, err
	}

	guest := guestFromRequest(eventID, req)

	var created *model.Guest
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		if req.UniqueCode == "" {
			if guest.UniqueCode, err = model.NewUniqueCode(); err != nil {
				return nil, err
			}
		}
		created, err = s.store.Create(ctx, guest)
		// an explicit code that collides is the caller's problem, a generated one is retried
		if !errors.Is(err, apperrors.ErrDuplicateCode) || req.UniqueCode != "" {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.refreshCounters(ctx, eventID)
	return created, nil
}

func (s *GuestServiceImpl) Import(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, r io.Reader) ([]*model.Guest, error) {
	if _, err := s.events.Authorize(ctx, user, eventID); err != nil {
		return nil, err
	}

	rows, err := ParseGuestCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: guest list is empty", apperrors.ErrInvalidInput)
	}

	if err := s.store.EnsureEvent(ctx, eventID); err != nil {
		return nil, err
	}
	taken := make(map[string]bool)
	for _, g := range s.store.ListByEvent(eventID) {
		taken[g.UniqueCode] = true
	}

	guests := make([]*model.Guest, 0, len(rows))
	var rowErrs []RowError
	for _, row := range rows {
		g := guestFromRequest(eventID, row.Request)
		if g.UniqueCode != "" {
			if taken[g.UniqueCode] {
				rowErrs = append(rowErrs, RowError{Line: row.Line, Message: "unique code already used in this event"})
				continue
			}
		} else {
			if g.UniqueCode, err = freshCode(taken); err != nil {
				return nil, err
			}
		}
		taken[g.UniqueCode] = true
		guests = append(guests, g)
	}
	if len(rowErrs) > 0 {
		return nil, &ImportError{Rows: rowErrs}
	}

	created, err := s.store.CreateBulk(ctx, guests)
	if err != nil {
		return nil, err
	}

	s.refreshCounters(ctx, eventID)
	return created, nil
}

func freshCode(taken map[string]bool) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := model.NewUniqueCode()
		if err != nil {
			return "", err
		}
		if !taken[code] {
			return code, nil
		}
	}
	return "", apperrors.ErrDuplicateCode
}

type ImportRow struct {
	Line    int
	Request model.CreateGuestRequest
}

// ParseGuestCSV reads name,email,phone,seating_area,cuisine_choice[,unique_code] rows.
// A header row is skipped when its first cell is "name". Every invalid row is reported.
func ParseGuestCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	var rows []ImportRow
	var rowErrs []RowError
	for i, rec := range records {
		line := i + 1
		if i == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "name") {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 1 || len(rec) > 6 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "expected 1 to 6 columns"})
			continue
		}

		req := model.CreateGuestRequest{Name: strings.TrimSpace(rec[0])}
		req.Email = optionalCell(rec, 1)
		req.Phone = optionalCell(rec, 2)
		if v := optionalCell(rec, 3); v != nil {
			area := model.SeatingArea(*v)
			req.SeatingArea = &area
		}
		if v := optionalCell(rec, 4); v != nil {
			cuisine := model.CuisineChoice(*v)
			req.CuisineChoice = &cuisine
		}
		if v := optionalCell(rec, 5); v != nil {
			req.UniqueCode = *v
		}

		if err := req.Validate(); err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Message: err.Error()})
			continue
		}
		rows = append(rows, ImportRow{Line: line, Request: req})
	}

	if len(rowErrs) > 0 {
		return nil, &ImportError{Rows: rowErrs}
	}
	return rows, nil
}

func optionalCell(rec []string, i int) *string {
	if i >= len(rec) {
		return nil
	}
	v := strings.TrimSpace(rec[i])
	if v == "" {
		return nil
	}
	return &v
}

func guestFromRequest(eventID uuid.UUID, req model.CreateGuestRequest) *model.Guest {
	return &model.Guest{
		EventID:       eventID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		SeatingArea:   req.SeatingArea,
		CuisineChoice: req.CuisineChoice,
		UniqueCode:    req.UniqueCode,
	}
}

func (s *GuestServiceImpl) Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	guest, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.Authorize(ctx, user, guest.EventID); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, params)
}

func (s *GuestServiceImpl) Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	guest, err := s.store.Fetch(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.events.Authorize(ctx, user, guest.EventID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshCounters(ctx, guest.EventID)
	return nil
}

func (s *GuestServiceImpl) DeleteBulk(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if _, err := s.events.Authorize(ctx, user, eventID); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteBulk(ctx, eventID, ids)
	if err != nil {
		return 0, err
	}
	s.refreshCounters(ctx, eventID)
	return n, nil
}

func (s *GuestServiceImpl) refreshCounters(ctx context.Context, eventID uuid.UUID) {
	if _, err := s.counts.RefreshCounters(ctx, eventID, true); err != nil {
		logger.WithComponent("service").Warn("refresh event counters failed",
			zap.String("event_id", eventID.String()), zap.Error(err))
	}
}
