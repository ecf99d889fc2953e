package queue

import (
	"context"
	"testing"
	"time"

	"event-checkin/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Delivery) Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(time.Second):
		t.Fatal("no delivery in time")
	}
	return Delivery{}
}

func TestScanEventQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewScanEventQueue(4)
	sent := &model.ScanEvent{Kind: model.ScanEventIncrement, SessionID: uuid.New(), At: time.Now()}
	require.NoError(t, q.Publish(ctx, sent))

	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	d := receive(t, msgs)
	assert.Same(t, sent, d.Data)
	d.Ack()
}

func TestScanEventQueue_NackRequeues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewScanEventQueue(4)
	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	sent := &model.ScanEvent{Kind: model.ScanEventTouch, SessionID: uuid.New()}
	require.NoError(t, q.Publish(ctx, sent))

	first := receive(t, msgs)
	first.Nack(true)
	again := receive(t, msgs)
	assert.Equal(t, sent.SessionID, again.Data.SessionID)

	// a dropped message is gone for good
	again.Nack(false)
	select {
	case d := <-msgs:
		t.Fatalf("unexpected redelivery of %s", d.Data.SessionID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScanEventQueue_PublishHonoursContext(t *testing.T) {
	q := NewScanEventQueue(1)
	require.NoError(t, q.Publish(context.Background(), &model.ScanEvent{Kind: model.ScanEventEnd}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, &model.ScanEvent{Kind: model.ScanEventEnd})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScanEventQueue_SubscribeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewScanEventQueue(1)
	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription did not close")
	}
}
