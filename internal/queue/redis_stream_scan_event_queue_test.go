package queue

import (
	"context"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/testutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStream returns a Redis client with an empty scan-event stream.
func setupStream(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis stream test in short mode")
	}
	_, rdb, cleanup, err := testutil.Setup()
	if err != nil {
		t.Skipf("test infrastructure unavailable: %v", err)
	}
	t.Cleanup(cleanup)
	require.NoError(t, rdb.Del(context.Background(), StreamKey).Err())
	return rdb
}

func assertNothingPending(t *testing.T, ctx context.Context, rdb *redis.Client) {
	t.Helper()
	assert.Eventually(t, func() bool {
		pending, err := rdb.XPending(ctx, StreamKey, ConsumerGroupName).Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRedisStreamScanEventQueue(t *testing.T) {
	rdb := setupStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := NewRedisStreamScanEventQueue(ctx, rdb, "test", &RedisStreamConfig{
		ClaimMinIdleTime:   100 * time.Millisecond,
		ReadGroupBlockTime: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	// creating the group twice is harmless
	_, err = NewRedisStreamScanEventQueue(ctx, rdb, "test-2", nil)
	require.NoError(t, err)

	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	sent := &model.ScanEvent{Kind: model.ScanEventIncrement, SessionID: uuid.New(), At: time.Now().UTC()}
	require.NoError(t, q.Publish(ctx, sent))

	first := receive(t, msgs)
	assert.Equal(t, sent.SessionID, first.Data.SessionID)
	assert.Equal(t, model.ScanEventIncrement, first.Data.Kind)

	// requeued entries come back once they sat idle long enough
	first.Nack(true)
	select {
	case again := <-msgs:
		assert.Equal(t, sent.SessionID, again.Data.SessionID)
		again.Ack()
	case <-time.After(3 * time.Second):
		t.Fatal("nacked message was not reclaimed")
	}

	assertNothingPending(t, ctx, rdb)
}

func TestRedisStreamScanEventQueue_DropsExhaustedEntries(t *testing.T) {
	rdb := setupStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := NewRedisStreamScanEventQueue(ctx, rdb, "retry", &RedisStreamConfig{
		ClaimMinIdleTime:   100 * time.Millisecond,
		ReadGroupBlockTime: 100 * time.Millisecond,
		MaxRetryCount:      1,
	})
	require.NoError(t, err)

	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, &model.ScanEvent{Kind: model.ScanEventTouch, SessionID: uuid.New(), At: time.Now()}))
	receive(t, msgs).Nack(true)

	select {
	case d := <-msgs:
		t.Fatalf("entry past its retry budget was delivered again: %+v", d.Data)
	case <-time.After(time.Second):
	}
	assertNothingPending(t, ctx, rdb)
}

func TestRedisStreamScanEventQueue_NackWithoutRequeueAcks(t *testing.T) {
	rdb := setupStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := NewRedisStreamScanEventQueue(ctx, rdb, "discard", &RedisStreamConfig{
		ReadGroupBlockTime: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, &model.ScanEvent{Kind: model.ScanEventEnd, SessionID: uuid.New(), At: time.Now()}))
	receive(t, msgs).Nack(false)

	assertNothingPending(t, ctx, rdb)
}
