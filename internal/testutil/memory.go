package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/repository"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
)

// MemoryDB backs the in-memory repositories so that counters and cascades
// see the same guests the guest repository writes.
type MemoryDB struct {
	mu       sync.Mutex
	events   map[uuid.UUID]*model.Event
	guests   map[uuid.UUID]*model.Guest
	sessions map[uuid.UUID]*model.ScannerSession
	now      func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		events:   make(map[uuid.UUID]*model.Event),
		guests:   make(map[uuid.UUID]*model.Guest),
		sessions: make(map[uuid.UUID]*model.ScannerSession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (db *MemoryDB) Events() repository.EventRepository {
	return &memoryEventRepository{db: db}
}

func (db *MemoryDB) Guests() repository.GuestRepository {
	return &memoryGuestRepository{db: db}
}

func (db *MemoryDB) Sessions() repository.ScannerSessionRepository {
	return &memorySessionRepository{db: db}
}

// SeedEvent stores the event as given, filling ID and timestamps when empty.
func (db *MemoryDB) SeedEvent(e *model.Event) *model.Event {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now()
		e.UpdatedAt = e.CreatedAt
	}
	if e.Status == "" {
		e.Status = model.EventStatusActive
	}
	c := *e
	db.events[e.ID] = &c
	return e
}

// SeedGuest stores the guest as given, including any check-in state.
func (db *MemoryDB) SeedGuest(g *model.Guest) *model.Guest {
	db.mu.Lock()
	defer db.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = db.now()
	}
	c := *g
	db.guests[g.ID] = &c
	return g
}

func (db *MemoryDB) Guest(id uuid.UUID) (*model.Guest, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	g, ok := db.guests[id]
	if !ok {
		return nil, false
	}
	c := *g
	return &c, true
}

func (db *MemoryDB) Session(id uuid.UUID) (*model.ScannerSession, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[id]
	if !ok {
		return nil, false
	}
	c := *s
	return &c, true
}

func (db *MemoryDB) codeTaken(eventID uuid.UUID, code string, except uuid.UUID) bool {
	for _, g := range db.guests {
		if g.EventID == eventID && g.UniqueCode == code && g.ID != except {
			return true
		}
	}
	return false
}

type memoryEventRepository struct {
	db *MemoryDB
}

func (r *memoryEventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	c := *event
	c.ID = uuid.New()
	c.TotalGuests = 0
	c.CheckedInGuests = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	r.db.events[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memoryEventRepository) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	events := make([]*model.Event, 0, len(r.db.events))
	for _, e := range r.db.events {
		if filter.OwnerID != "" && e.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.StartsAfter != nil && !e.StartsAt.After(*filter.StartsAfter) {
			continue
		}
		c := *e
		events = append(events, &c)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartsAt.After(events[j].StartsAt) })
	return events, nil
}

func (r *memoryEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

func (r *memoryEventRepository) Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	if params.Title == nil && params.Description == nil && params.StartsAt == nil &&
		params.Venue == nil && params.Status == nil {
		return nil, apperrors.ErrInvalidInput
	}
	if params.Title != nil {
		e.Title = *params.Title
	}
	if params.Description != nil {
		e.Description = params.Description
	}
	if params.StartsAt != nil {
		e.StartsAt = params.StartsAt.UTC()
	}
	if params.Venue != nil {
		e.Venue = params.Venue
	}
	if params.Status != nil {
		e.Status = *params.Status
	}
	e.UpdatedAt = r.db.now()
	c := *e
	return &c, nil
}

func (r *memoryEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return apperrors.ErrEventNotFound
	}
	e.Status = status
	e.UpdatedAt = r.db.now()
	return nil
}

func (r *memoryEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[id]; !ok {
		return apperrors.ErrEventNotFound
	}
	delete(r.db.events, id)
	for gid, g := range r.db.guests {
		if g.EventID == id {
			delete(r.db.guests, gid)
		}
	}
	for sid, s := range r.db.sessions {
		if s.EventID == id {
			delete(r.db.sessions, sid)
		}
	}
	return nil
}

func (r *memoryEventRepository) RefreshCounters(ctx context.Context, id uuid.UUID) (int, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return 0, 0, apperrors.ErrEventNotFound
	}
	total, checkedIn := 0, 0
	for _, g := range r.db.guests {
		if g.EventID != id {
			continue
		}
		total++
		if g.CheckedIn {
			checkedIn++
		}
	}
	if e.TotalGuests != total || e.CheckedInGuests != checkedIn {
		e.TotalGuests = total
		e.CheckedInGuests = checkedIn
		e.UpdatedAt = r.db.now()
	}
	return total, checkedIn, nil
}

type memoryGuestRepository struct {
	db *MemoryDB
}

func (r *memoryGuestRepository) insertLocked(guest *model.Guest) (*model.Guest, error) {
	if _, ok := r.db.events[guest.EventID]; !ok {
		return nil, apperrors.ErrEventNotFound
	}
	if r.db.codeTaken(guest.EventID, guest.UniqueCode, uuid.Nil) {
		return nil, apperrors.ErrDuplicateCode
	}
	c := model.Guest{
		ID:            uuid.New(),
		EventID:       guest.EventID,
		Name:          guest.Name,
		Email:         guest.Email,
		Phone:         guest.Phone,
		SeatingArea:   guest.SeatingArea,
		CuisineChoice: guest.CuisineChoice,
		UniqueCode:    guest.UniqueCode,
		CreatedAt:     r.db.now(),
	}
	r.db.guests[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memoryGuestRepository) Create(ctx context.Context, guest *model.Guest) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.insertLocked(guest)
}

func (r *memoryGuestRepository) CreateBulk(ctx context.Context, guests []*model.Guest) ([]*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	created := make([]*model.Guest, 0, len(guests))
	for _, g := range guests {
		c, err := r.insertLocked(g)
		if err != nil {
			for _, done := range created {
				delete(r.db.guests, done.ID)
			}
			return nil, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (r *memoryGuestRepository) sorted(match func(*model.Guest) bool) []*model.Guest {
	guests := make([]*model.Guest, 0)
	for _, g := range r.db.guests {
		if match(g) {
			c := *g
			guests = append(guests, &c)
		}
	}
	sort.Slice(guests, func(i, j int) bool {
		if guests[i].Name != guests[j].Name {
			return guests[i].Name < guests[j].Name
		}
		return guests[i].CreatedAt.Before(guests[j].CreatedAt)
	})
	return guests
}

func (r *memoryGuestRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.sorted(func(g *model.Guest) bool { return g.EventID == eventID }), nil
}

func (r *memoryGuestRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.sorted(func(g *model.Guest) bool {
		_, ok := want[g.ID]
		return ok
	}), nil
}

func (r *memoryGuestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.guests[id]
	if !ok {
		return nil, apperrors.ErrGuestNotFound
	}
	c := *g
	return &c, nil
}

func (r *memoryGuestRepository) FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.guests {
		if g.EventID == eventID && g.UniqueCode == code {
			c := *g
			return &c, nil
		}
	}
	return nil, apperrors.ErrGuestNotFound
}

func (r *memoryGuestRepository) Update(ctx context.Context, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.guests[id]
	if !ok {
		return nil, apperrors.ErrGuestNotFound
	}
	if params.Name == nil && params.Email == nil && params.Phone == nil &&
		params.SeatingArea == nil && params.CuisineChoice == nil {
		return nil, apperrors.ErrInvalidInput
	}
	if params.Name != nil {
		g.Name = *params.Name
	}
	if params.Email != nil {
		g.Email = emptyToNil(*params.Email)
	}
	if params.Phone != nil {
		g.Phone = emptyToNil(*params.Phone)
	}
	if params.SeatingArea != nil {
		g.SeatingArea = params.SeatingArea
		if *params.SeatingArea == "" {
			g.SeatingArea = nil
		}
	}
	if params.CuisineChoice != nil {
		g.CuisineChoice = params.CuisineChoice
		if *params.CuisineChoice == "" {
			g.CuisineChoice = nil
		}
	}
	c := *g
	return &c, nil
}

func (r *memoryGuestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.guests[id]; !ok {
		return apperrors.ErrGuestNotFound
	}
	delete(r.db.guests, id)
	return nil
}

func (r *memoryGuestRepository) DeleteBulk(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		if g, ok := r.db.guests[id]; ok && g.EventID == eventID {
			delete(r.db.guests, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryGuestRepository) CheckIn(ctx context.Context, id uuid.UUID, params model.CheckInParams) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.guests[id]
	if !ok {
		return nil, apperrors.ErrGuestNotFound
	}
	if g.CheckedIn {
		c := *g
		return &c, apperrors.ErrAlreadyCheckedIn
	}
	applyCheckIn(g, params)
	if params.PhotoURL != nil {
		url := *params.PhotoURL
		g.PhotoURL = &url
	}
	c := *g
	return &c, nil
}

func (r *memoryGuestRepository) SetCheckedIn(ctx context.Context, id uuid.UUID, checkedIn bool, params model.CheckInParams) (*model.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.guests[id]
	if !ok {
		return nil, apperrors.ErrGuestNotFound
	}
	if checkedIn {
		applyCheckIn(g, params)
	} else {
		g.CheckedIn = false
		g.CheckedInAt = nil
	}
	c := *g
	return &c, nil
}

func (r *memoryGuestRepository) MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.guests[id]
	if !ok {
		return apperrors.ErrGuestNotFound
	}
	ts := at.UTC()
	g.InvitationSent = true
	g.InvitationSentAt = &ts
	return nil
}

func applyCheckIn(g *model.Guest, params model.CheckInParams) {
	at := params.At.UTC()
	g.CheckedIn = true
	g.Attended = true
	g.CheckedInAt = &at
	by := params.Usher.UserID
	g.CheckedInBy = &by
	g.UsherName = emptyToNil(params.Usher.Name)
	g.UsherEmail = emptyToNil(params.Usher.Email)
	if g.FirstCheckinAt == nil {
		first := at
		g.FirstCheckinAt = &first
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type memorySessionRepository struct {
	db *MemoryDB
}

func (r *memorySessionRepository) Start(ctx context.Context, session *model.ScannerSession) (*model.ScannerSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[session.EventID]; !ok {
		return nil, apperrors.ErrEventNotFound
	}
	now := session.SessionStart.UTC()
	for _, s := range r.db.sessions {
		if s.UserID == session.UserID && s.EventID == session.EventID && s.IsActive {
			end := now
			s.IsActive = false
			s.SessionEnd = &end
		}
	}
	c := model.ScannerSession{
		ID:           uuid.New(),
		UserID:       session.UserID,
		EventID:      session.EventID,
		UsherName:    session.UsherName,
		UsherEmail:   session.UsherEmail,
		SessionStart: now,
		LastActivity: now,
		IsActive:     true,
	}
	r.db.sessions[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memorySessionRepository) End(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	s.IsActive = false
	if s.SessionEnd == nil {
		end := at.UTC()
		s.SessionEnd = &end
	}
	return nil
}

func (r *memorySessionRepository) EndStale(ctx context.Context, idleSince time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, s := range r.db.sessions {
		if s.IsActive && s.LastActivity.Before(idleSince) {
			end := s.LastActivity
			s.IsActive = false
			s.SessionEnd = &end
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepository) activeLocked(id uuid.UUID) (*model.ScannerSession, error) {
	s, ok := r.db.sessions[id]
	if !ok || !s.IsActive {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (r *memorySessionRepository) IncrementScanCount(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, err := r.activeLocked(id)
	if err != nil {
		return err
	}
	s.ScanCount++
	s.LastActivity = at.UTC()
	return nil
}

func (r *memorySessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, err := r.activeLocked(id)
	if err != nil {
		return err
	}
	s.LastActivity = at.UTC()
	return nil
}

func (r *memorySessionRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.ScannerSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	sessions := make([]*model.ScannerSession, 0)
	for _, s := range r.db.sessions {
		if s.EventID == eventID {
			c := *s
			sessions = append(sessions, &c)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].SessionStart.After(sessions[j].SessionStart) })
	return sessions, nil
}

func (r *memorySessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ScannerSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

// GuestName is a readable name for the n-th generated guest.
func GuestName(n int) string {
	return fmt.Sprintf("Guest %04d", n)
}
