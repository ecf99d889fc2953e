package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"event-checkin/internal/model"
	"event-checkin/internal/repository"

	"github.com/google/uuid"
)

// EventStore caches events by id. Mutations reach the repository first and only
// touch local state once the remote write succeeded.
type EventStore struct {
	repo repository.EventRepository

	mu      sync.RWMutex
	events  map[uuid.UUID]*model.Event
	loading atomic.Int32
}

func NewEventStore(repo repository.EventRepository) *EventStore {
	return &EventStore{
		repo:   repo,
		events: make(map[uuid.UUID]*model.Event),
	}
}

// Loading reports whether a non-silent load is in progress.
func (s *EventStore) Loading() bool {
	return s.loading.Load() > 0
}

func (s *EventStore) beginLoad() func() {
	s.loading.Add(1)
	return func() { s.loading.Add(-1) }
}

func (s *EventStore) Load(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	defer s.beginLoad()()

	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, e := range events {
		s.events[e.ID] = cloneEvent(e)
	}
	s.mu.Unlock()

	return events, nil
}

// Fetch returns the cached event or reads it through from the repository.
func (s *EventStore) Fetch(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	if e, ok := s.Get(id); ok {
		return e, nil
	}

	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(e)
	return cloneEvent(e), nil
}

func (s *EventStore) Get(id uuid.UUID) (*model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, false
	}
	return cloneEvent(e), true
}

func (s *EventStore) Has(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[id]
	return ok
}

func (s *EventStore) List() []*model.Event {
	s.mu.RLock()
	out := make([]*model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, cloneEvent(e))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out
}

func (s *EventStore) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, err
	}
	s.put(created)
	return cloneEvent(created), nil
}

func (s *EventStore) Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.put(updated)
	return cloneEvent(updated), nil
}

func (s *EventStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.mu.Lock()
	if e, ok := s.events[id]; ok {
		e.Status = status
	}
	s.mu.Unlock()
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Remove(id)
	return nil
}

// RefreshCounters re-reads the guest counters. A silent refresh leaves Loading untouched.
func (s *EventStore) RefreshCounters(ctx context.Context, id uuid.UUID, silent bool) (*model.Event, error) {
	if !silent {
		defer s.beginLoad()()
	}

	total, checkedIn, err := s.repo.RefreshCounters(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	e.TotalGuests = total
	e.CheckedInGuests = checkedIn
	return cloneEvent(e), nil
}

// InsertIfAbsent merges a pushed insert. It returns false when the id is already known.
func (s *EventStore) InsertIfAbsent(e *model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return false
	}
	s.events[e.ID] = cloneEvent(e)
	return true
}

// Patch applies only the columns present in fields to a cached event.
func (s *EventStore) Patch(id uuid.UUID, fields Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return false, nil
	}
	patched := cloneEvent(e)
	if err := PatchEvent(patched, fields); err != nil {
		return false, err
	}
	s.events[id] = patched
	return true, nil
}

func (s *EventStore) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return false
	}
	delete(s.events, id)
	return true
}

func (s *EventStore) put(e *model.Event) {
	s.mu.Lock()
	s.events[e.ID] = cloneEvent(e)
	s.mu.Unlock()
}

func cloneEvent(e *model.Event) *model.Event {
	cp := *e
	return &cp
}
