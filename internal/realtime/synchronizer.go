package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"event-checkin/internal/metrics"
	"event-checkin/internal/store"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	EventsChannel = "events_changes"
	GuestsChannel = "guests_changes"

	defaultBackoff = 3 * time.Second
	idleCheck      = time.Minute
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is the payload published by the notify_row_change trigger.
type Change struct {
	Type      ChangeType   `json:"type"`
	Table     string       `json:"table"`
	Record    store.Record `json:"record"`
	OldRecord store.Record `json:"old_record"`
}

// row returns the record that identifies the changed row.
func (c *Change) row() store.Record {
	if c.Type == ChangeDelete {
		return c.OldRecord
	}
	return c.Record
}

type Synchronizer struct {
	pool      *pgxpool.Pool
	events    *store.EventStore
	guests    *store.GuestStore
	publisher Publisher
	backoff   time.Duration

	mu      sync.RWMutex
	watched map[uuid.UUID]struct{}
}

func NewSynchronizer(pool *pgxpool.Pool, events *store.EventStore, guests *store.GuestStore, publisher Publisher, backoff time.Duration) *Synchronizer {
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Synchronizer{
		pool:      pool,
		events:    events,
		guests:    guests,
		publisher: publisher,
		backoff:   backoff,
		watched:   make(map[uuid.UUID]struct{}),
	}
}

func (s *Synchronizer) Watch(eventID uuid.UUID) {
	s.mu.Lock()
	s.watched[eventID] = struct{}{}
	s.mu.Unlock()
}

func (s *Synchronizer) Unwatch(eventID uuid.UUID) {
	s.mu.Lock()
	delete(s.watched, eventID)
	s.mu.Unlock()
}

// Watching reports whether guest changes for eventID should be merged.
func (s *Synchronizer) Watching(eventID uuid.UUID) bool {
	s.mu.RLock()
	_, ok := s.watched[eventID]
	s.mu.RUnlock()
	return ok || s.guests.IsLoaded(eventID) || s.events.Has(eventID)
}

// Run listens until ctx is cancelled, reconnecting after a fixed backoff.
func (s *Synchronizer) Run(ctx context.Context) {
	log := logger.WithComponent("realtime")
	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			log.Info("realtime synchronizer stopped")
			return
		}
		log.Warn("realtime listener lost, retrying",
			zap.Duration("backoff", s.backoff), zap.Error(err))
		metrics.TrackReconnect()

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *Synchronizer) listen(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	for _, channel := range []string{EventsChannel, GuestsChannel} {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return fmt.Errorf("listen %s: %w", channel, err)
		}
	}
	logger.WithComponent("realtime").Info("listening for changes")

	for {
		waitCtx, cancel := context.WithTimeout(ctx, idleCheck)
		n, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// quiet period: make sure the connection is still alive
				if err := conn.Ping(ctx); err != nil {
					return fmt.Errorf("listen connection ping: %w", err)
				}
				continue
			}
			return err
		}

		if err := s.Handle(ctx, []byte(n.Payload)); err != nil {
			logger.WithComponent("realtime").Warn("discarding change",
				zap.String("channel", n.Channel), zap.Error(err))
		}
	}
}

// Handle decodes one notification payload and applies it.
func (s *Synchronizer) Handle(ctx context.Context, payload []byte) error {
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return fmt.Errorf("decode change: %w", err)
	}
	_, err := s.Apply(ctx, &change)
	return err
}

// Apply merges a change into the stores and republishes it. It returns false when
// the change was filtered out or already reflected locally.
func (s *Synchronizer) Apply(ctx context.Context, change *Change) (bool, error) {
	row := change.row()
	if row == nil {
		return false, fmt.Errorf("%s change on %s carries no row", change.Type, change.Table)
	}

	var (
		eventID uuid.UUID
		applied bool
		err     error
	)
	switch change.Table {
	case "events":
		eventID, err = row.UUID("id")
		if err != nil {
			return false, err
		}
		applied, err = s.applyEvent(change, eventID)
	case "guests":
		eventID, err = row.UUID("event_id")
		if err != nil {
			return false, err
		}
		if !s.Watching(eventID) {
			return false, nil
		}
		applied, err = s.applyGuest(change, row)
		if err == nil {
			if _, rerr := s.events.RefreshCounters(ctx, eventID, true); rerr != nil {
				logger.WithComponent("realtime").Warn("refresh counters failed",
					zap.String("event_id", eventID.String()), zap.Error(rerr))
			}
		}
	default:
		return false, fmt.Errorf("unexpected table %q", change.Table)
	}
	if err != nil {
		return false, err
	}

	metrics.TrackRealtimeChange(change.Table, string(change.Type))
	if applied {
		if perr := s.publisher.Publish(EventChannel(eventID), change); perr != nil {
			logger.WithComponent("realtime").Warn("publish change failed",
				zap.String("event_id", eventID.String()), zap.Error(perr))
		}
	}
	return applied, nil
}

func (s *Synchronizer) applyEvent(change *Change, id uuid.UUID) (bool, error) {
	switch change.Type {
	case ChangeInsert:
		e, err := store.EventFromRecord(change.Record)
		if err != nil {
			return false, err
		}
		return s.events.InsertIfAbsent(e), nil
	case ChangeUpdate:
		return s.events.Patch(id, change.Record)
	case ChangeDelete:
		s.guests.Evict(id)
		s.Unwatch(id)
		return s.events.Remove(id), nil
	}
	return false, fmt.Errorf("unexpected change type %q", change.Type)
}

func (s *Synchronizer) applyGuest(change *Change, row store.Record) (bool, error) {
	id, err := row.UUID("id")
	if err != nil {
		return false, err
	}
	switch change.Type {
	case ChangeInsert:
		g, err := store.GuestFromRecord(change.Record)
		if err != nil {
			return false, err
		}
		return s.guests.InsertIfAbsent(g), nil
	case ChangeUpdate:
		return s.guests.Patch(id, change.Record)
	case ChangeDelete:
		return s.guests.Remove(id), nil
	}
	return false, fmt.Errorf("unexpected change type %q", change.Type)
}
