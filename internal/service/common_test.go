package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/queue"
	"event-checkin/internal/store"
	"event-checkin/internal/testutil"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
)

var (
	owner = &model.AuthUser{ID: "owner-1", Email: "owner@example.com", Name: "Olivia", Role: model.RoleAdmin}
	usher = &model.AuthUser{ID: "usher-1", Email: "usher@example.com", Name: "Uma", Role: model.RoleUsher}
)

type testEnv struct {
	db         *testutil.MemoryDB
	eventStore *store.EventStore
	guestStore *store.GuestStore
	events     EventService
	sessions   ScannerSessionService
	queue      queue.ScanEventQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewMemoryDB()
	eventStore := store.NewEventStore(db.Events())
	guestStore := store.NewGuestStore(db.Guests())
	events := NewEventService(eventStore, guestStore)
	q := queue.NewScanEventQueue(64)
	return &testEnv{
		db:         db,
		eventStore: eventStore,
		guestStore: guestStore,
		events:     events,
		sessions:   NewScannerSessionService(db.Sessions(), events, q),
		queue:      q,
	}
}

func (e *testEnv) seedEvent(t *testing.T) *model.Event {
	t.Helper()
	return e.db.SeedEvent(&model.Event{
		Title:    "Gala Dinner",
		OwnerID:  owner.ID,
		Status:   model.EventStatusActive,
		StartsAt: time.Now().Add(time.Hour),
	})
}

func (e *testEnv) seedGuests(t *testing.T, eventID uuid.UUID, n int) []*model.Guest {
	t.Helper()
	guests := make([]*model.Guest, 0, n)
	for i := 0; i < n; i++ {
		guests = append(guests, e.db.SeedGuest(&model.Guest{
			EventID:    eventID,
			Name:       testutil.GuestName(i),
			UniqueCode: fmt.Sprintf("G%05d", i),
		}))
	}
	return guests
}

func (e *testEnv) checkinService(guard *memoryScanGuard, objects *memoryObjectStore) CheckinService {
	return NewCheckinService(e.guestStore, e.eventStore, e.events, e.sessions, guard, objects, CheckinOptions{
		ErrorCooldown: 2 * time.Second,
		MaxPhotoEdge:  256,
	})
}

// memoryScanGuard mirrors the Redis guard: one in-flight scan per scope and a
// per-payload cooldown after rejected scans.
type memoryScanGuard struct {
	mu       sync.Mutex
	inflight map[string]string
	cooldown map[string]time.Time
	err      error
}

func newMemoryScanGuard() *memoryScanGuard {
	return &memoryScanGuard{inflight: map[string]string{}, cooldown: map[string]time.Time{}}
}

func (g *memoryScanGuard) Acquire(ctx context.Context, scope, payload, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	if until, ok := g.cooldown[scope+"|"+payload]; ok && time.Now().Before(until) {
		return apperrors.ErrScanCooldown
	}
	if _, busy := g.inflight[scope]; busy {
		return apperrors.ErrScannerBusy
	}
	g.inflight[scope] = token
	return nil
}

func (g *memoryScanGuard) Release(ctx context.Context, scope, payload, token string, cooldown time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[scope] == token {
		delete(g.inflight, scope)
	}
	if cooldown > 0 {
		g.cooldown[scope+"|"+payload] = time.Now().Add(cooldown)
	}
	return nil
}

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (s *memoryObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects[key] = body
	return "https://cdn.example.com/" + key, nil
}

func (s *memoryObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
