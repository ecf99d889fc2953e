package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/repository"

	"github.com/google/uuid"
)

// CodeIndex maps unique codes to guests for one event.
type CodeIndex map[string]*model.Guest

// BuildCodeIndex builds a fresh index for guests. It is rebuilt whenever the
// event's guest list changes rather than patched in place.
func BuildCodeIndex(guests []*model.Guest) CodeIndex {
	idx := make(CodeIndex, len(guests))
	for _, g := range guests {
		idx[g.UniqueCode] = g
	}
	return idx
}

type eventGuests struct {
	byID   map[uuid.UUID]*model.Guest
	byCode CodeIndex
}

func (eg *eventGuests) rebuild() {
	list := make([]*model.Guest, 0, len(eg.byID))
	for _, g := range eg.byID {
		list = append(list, g)
	}
	eg.byCode = BuildCodeIndex(list)
}

// GuestStore caches guests per event, along with the code lookup used by the scanner.
type GuestStore struct {
	repo repository.GuestRepository

	mu     sync.RWMutex
	events map[uuid.UUID]*eventGuests
	owner  map[uuid.UUID]uuid.UUID // guest id -> event id
}

func NewGuestStore(repo repository.GuestRepository) *GuestStore {
	return &GuestStore{
		repo:   repo,
		events: make(map[uuid.UUID]*eventGuests),
		owner:  make(map[uuid.UUID]uuid.UUID),
	}
}

// LoadEvent replaces the cached guest list of an event with the repository's.
func (s *GuestStore) LoadEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Guest, error) {
	guests, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if prev, ok := s.events[eventID]; ok {
		for id := range prev.byID {
			delete(s.owner, id)
		}
	}
	eg := &eventGuests{byID: make(map[uuid.UUID]*model.Guest, len(guests))}
	for _, g := range guests {
		eg.byID[g.ID] = cloneGuest(g)
		s.owner[g.ID] = eventID
	}
	eg.rebuild()
	s.events[eventID] = eg
	s.mu.Unlock()

	return guests, nil
}

// EnsureEvent loads the event's guests unless they are already cached.
func (s *GuestStore) EnsureEvent(ctx context.Context, eventID uuid.UUID) error {
	if s.IsLoaded(eventID) {
		return nil
	}
	_, err := s.LoadEvent(ctx, eventID)
	return err
}

func (s *GuestStore) IsLoaded(eventID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventID]
	return ok
}

func (s *GuestStore) Evict(eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eg, ok := s.events[eventID]; ok {
		for id := range eg.byID {
			delete(s.owner, id)
		}
		delete(s.events, eventID)
	}
}

func (s *GuestStore) ListByEvent(eventID uuid.UUID) []*model.Guest {
	s.mu.RLock()
	eg, ok := s.events[eventID]
	if !ok {
		s.mu.RUnlock()
		return []*model.Guest{}
	}
	out := make([]*model.Guest, 0, len(eg.byID))
	for _, g := range eg.byID {
		out = append(out, cloneGuest(g))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *GuestStore) Get(id uuid.UUID) (*model.Guest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eventID, ok := s.owner[id]
	if !ok {
		return nil, false
	}
	return cloneGuest(s.events[eventID].byID[id]), true
}

// Fetch returns the cached guest or reads it through from the repository.
func (s *GuestStore) Fetch(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	if g, ok := s.Get(id); ok {
		return g, nil
	}
	g, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Put(g)
	return g, nil
}

// LookupCode finds a guest of eventID by unique code without touching other events.
func (s *GuestStore) LookupCode(eventID uuid.UUID, code string) (*model.Guest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eg, ok := s.events[eventID]
	if !ok {
		return nil, false
	}
	g, ok := eg.byCode[code]
	if !ok {
		return nil, false
	}
	return cloneGuest(g), true
}

// AllCheckedIn reports whether the event has guests and every one is checked in.
func (s *GuestStore) AllCheckedIn(eventID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eg, ok := s.events[eventID]
	if !ok || len(eg.byID) == 0 {
		return false
	}
	for _, g := range eg.byID {
		if !g.CheckedIn {
			return false
		}
	}
	return true
}

func (s *GuestStore) Create(ctx context.Context, guest *model.Guest) (*model.Guest, error) {
	created, err := s.repo.Create(ctx, guest)
	if err != nil {
		return nil, err
	}
	s.Put(created)
	return cloneGuest(created), nil
}

func (s *GuestStore) CreateBulk(ctx context.Context, guests []*model.Guest) ([]*model.Guest, error) {
	created, err := s.repo.CreateBulk(ctx, guests)
	if err != nil {
		return nil, err
	}
	s.PutAll(created)
	return created, nil
}

func (s *GuestStore) Update(ctx context.Context, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error) {
	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.Put(updated)
	return cloneGuest(updated), nil
}

func (s *GuestStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Remove(id)
	return nil
}

func (s *GuestStore) DeleteBulk(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteBulk(ctx, eventID, ids)
	if err != nil {
		return 0, err
	}
	s.RemoveAll(ids)
	return n, nil
}

// CheckIn commits a first check-in. When another commit won the race the stored
// guest is cached and returned alongside ErrAlreadyCheckedIn.
func (s *GuestStore) CheckIn(ctx context.Context, id uuid.UUID, params model.CheckInParams) (*model.Guest, error) {
	g, err := s.repo.CheckIn(ctx, id, params)
	if g != nil {
		s.Put(g)
	}
	return g, err
}

func (s *GuestStore) SetCheckedIn(ctx context.Context, id uuid.UUID, checkedIn bool, params model.CheckInParams) (*model.Guest, error) {
	g, err := s.repo.SetCheckedIn(ctx, id, checkedIn, params)
	if err != nil {
		return nil, err
	}
	s.Put(g)
	return g, nil
}

func (s *GuestStore) MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.MarkInvitationSent(ctx, id, at); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if eventID, ok := s.owner[id]; ok {
		patched := cloneGuest(s.events[eventID].byID[id])
		patched.InvitationSent = true
		sent := at
		patched.InvitationSentAt = &sent
		s.events[eventID].byID[id] = patched
		s.events[eventID].rebuild()
	}
	return nil
}

// Put upserts a guest that is known to reflect the remote state.
func (s *GuestStore) Put(g *model.Guest) {
	s.PutAll([]*model.Guest{g})
}

func (s *GuestStore) PutAll(guests []*model.Guest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[uuid.UUID]*eventGuests)
	for _, g := range guests {
		eg, ok := s.events[g.EventID]
		if !ok {
			// Only events the store was asked to load are tracked.
			continue
		}
		eg.byID[g.ID] = cloneGuest(g)
		s.owner[g.ID] = g.EventID
		touched[g.EventID] = eg
	}
	for _, eg := range touched {
		eg.rebuild()
	}
}

// InsertIfAbsent merges a pushed insert, deduplicating by id.
func (s *GuestStore) InsertIfAbsent(g *model.Guest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owner[g.ID]; ok {
		return false
	}
	eg, ok := s.events[g.EventID]
	if !ok {
		return false
	}
	eg.byID[g.ID] = cloneGuest(g)
	s.owner[g.ID] = g.EventID
	eg.rebuild()
	return true
}

// Patch applies only the columns present in fields to a cached guest.
func (s *GuestStore) Patch(id uuid.UUID, fields Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID, ok := s.owner[id]
	if !ok {
		return false, nil
	}
	eg := s.events[eventID]
	patched := cloneGuest(eg.byID[id])
	if err := PatchGuest(patched, fields); err != nil {
		return false, err
	}
	eg.byID[id] = patched
	eg.rebuild()
	return true, nil
}

func (s *GuestStore) Remove(id uuid.UUID) bool {
	return s.RemoveAll([]uuid.UUID{id}) > 0
}

func (s *GuestStore) RemoveAll(ids []uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	touched := make(map[uuid.UUID]*eventGuests)
	for _, id := range ids {
		eventID, ok := s.owner[id]
		if !ok {
			continue
		}
		eg := s.events[eventID]
		delete(eg.byID, id)
		delete(s.owner, id)
		touched[eventID] = eg
		removed++
	}
	for _, eg := range touched {
		eg.rebuild()
	}
	return removed
}

func cloneGuest(g *model.Guest) *model.Guest {
	cp := *g
	return &cp
}
