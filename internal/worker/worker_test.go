package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"event-checkin/internal/messaging"
	"event-checkin/internal/model"
	"event-checkin/internal/queue"
	"event-checkin/internal/service"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackState int32

const (
	pending ackState = iota
	acked
	dropped
	requeued
)

// stubQueue hands out deliveries that record how the worker settled them.
type stubQueue struct {
	ch chan queue.Delivery
}

func (q *stubQueue) Publish(ctx context.Context, event *model.ScanEvent) error {
	return errors.New("not used")
}

func (q *stubQueue) Subscribe(ctx context.Context) (<-chan queue.Delivery, error) {
	return q.ch, nil
}

func (q *stubQueue) deliver(event *model.ScanEvent) *int32 {
	state := new(int32)
	q.ch <- queue.Delivery{
		Data: event,
		Ack:  func() { atomic.StoreInt32(state, int32(acked)) },
		Nack: func(requeue bool) {
			if requeue {
				atomic.StoreInt32(state, int32(requeued))
				return
			}
			atomic.StoreInt32(state, int32(dropped))
		},
	}
	return state
}

type mockSessionService struct {
	service.ScannerSessionService
	apply func(*model.ScanEvent) error
}

func (m *mockSessionService) Apply(ctx context.Context, event *model.ScanEvent) error {
	return m.apply(event)
}

func (m *mockSessionService) EndStale(ctx context.Context, idle time.Duration) (int64, error) {
	return 0, nil
}

func waitFor(t *testing.T, state *int32, want ackState) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return ackState(atomic.LoadInt32(state)) == want
	}, time.Second, 5*time.Millisecond)
}

func TestScanEventWorker_SettlesDeliveries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := &stubQueue{ch: make(chan queue.Delivery, 3)}
	svc := &mockSessionService{apply: func(e *model.ScanEvent) error {
		switch e.Kind {
		case model.ScanEventIncrement:
			return nil
		case "bogus":
			return fmt.Errorf("%w: unknown kind", apperrors.ErrInvalidInput)
		default:
			return errors.New("database unavailable")
		}
	}}

	w := NewScanEventWorker(svc, q)
	require.NoError(t, w.Start(ctx))

	ok := q.deliver(&model.ScanEvent{Kind: model.ScanEventIncrement, SessionID: uuid.New()})
	bad := q.deliver(&model.ScanEvent{Kind: "bogus", SessionID: uuid.New()})
	flaky := q.deliver(&model.ScanEvent{Kind: model.ScanEventTouch, SessionID: uuid.New()})

	waitFor(t, ok, acked)
	waitFor(t, bad, dropped)
	waitFor(t, flaky, requeued)
}

func TestScanEventWorker_WithMemoryQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewScanEventQueue(10)
	called := make(chan *model.ScanEvent, 1)
	svc := &mockSessionService{apply: func(e *model.ScanEvent) error {
		called <- e
		return nil
	}}

	require.NoError(t, NewScanEventWorker(svc, q).Start(ctx))

	sent := &model.ScanEvent{Kind: model.ScanEventTouch, SessionID: uuid.New(), At: time.Now()}
	require.NoError(t, q.Publish(ctx, sent))

	select {
	case got := <-called:
		assert.Equal(t, sent.SessionID, got.SessionID)
	case <-time.After(time.Second):
		t.Fatal("worker did not apply the scan event in time")
	}
}

func TestSessionSweeper_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sweeper := NewSessionSweeper(&mockSessionService{}, time.Millisecond, time.Minute)
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type mockInvitationService struct {
	service.InvitationService
	delivered []uuid.UUID
	err       error
}

func (m *mockInvitationService) DeliverEmail(ctx context.Context, eventID, guestID uuid.UUID) error {
	m.delivered = append(m.delivered, guestID)
	return m.err
}

func TestInvitationEmailHandler(t *testing.T) {
	ctx := context.Background()
	guestID, eventID := uuid.New(), uuid.New()
	task, err := messaging.NewInvitationEmailTask(guestID, eventID)
	require.NoError(t, err)

	t.Run("delivers", func(t *testing.T) {
		svc := &mockInvitationService{}
		require.NoError(t, InvitationEmailHandler(svc)(ctx, task))
		assert.Equal(t, []uuid.UUID{guestID}, svc.delivered)
	})

	t.Run("delivery errors are retried by asynq", func(t *testing.T) {
		svc := &mockInvitationService{err: errors.New("smtp timeout")}
		err := InvitationEmailHandler(svc)(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("undecodable payload is not retried", func(t *testing.T) {
		svc := &mockInvitationService{}
		err := InvitationEmailHandler(svc)(ctx, asynq.NewTask(messaging.TypeInvitationEmail, []byte("{")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Empty(t, svc.delivered)
	})
}
