package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-checkin/internal/model"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Every server instance joins the same consumer group on one stream.
const (
	StreamKey         = "scan-events:stream"
	ConsumerGroupName = "scan-event-workers"

	eventField = "event"
	batchSize  = 10
)

// RedisStreamConfig tunes claiming and retries. Zero values fall back to the defaults.
type RedisStreamConfig struct {
	ClaimMinIdleTime   time.Duration // pending entries idle this long are handed out again
	MaxRetryCount      int           // entries delivered this many times are dropped
	ReadGroupBlockTime time.Duration
	MaxLen             int64 // approximate stream cap
}

func (c RedisStreamConfig) withDefaults() RedisStreamConfig {
	if c.ClaimMinIdleTime <= 0 {
		c.ClaimMinIdleTime = 5 * time.Second
	}
	if c.MaxRetryCount <= 0 {
		c.MaxRetryCount = 5
	}
	if c.ReadGroupBlockTime <= 0 {
		c.ReadGroupBlockTime = 2 * time.Second
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 100000
	}
	return c
}

type RedisStreamScanEventQueueImpl struct {
	client   *redis.Client
	consumer string
	cfg      RedisStreamConfig
	log      *zap.Logger
}

func NewRedisStreamScanEventQueue(ctx context.Context, client *redis.Client, consumerID string, config *RedisStreamConfig) (ScanEventQueue, error) {
	var cfg RedisStreamConfig
	if config != nil {
		cfg = *config
	}
	if consumerID == "" {
		consumerID = uuid.NewString()
	}

	err := client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s: %w", ConsumerGroupName, err)
	}

	consumer := "checkin:" + consumerID
	return &RedisStreamScanEventQueueImpl{
		client:   client,
		consumer: consumer,
		cfg:      cfg.withDefaults(),
		log:      logger.WithComponent("mq").With(zap.String("consumer", consumer)),
	}, nil
}

func (q *RedisStreamScanEventQueueImpl) Publish(ctx context.Context, event *model.ScanEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{eventField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish scan event: %w", err)
	}
	return nil
}

// Subscribe runs one loop per consumer. Each pass first takes back entries left
// pending past ClaimMinIdleTime (requeued, or orphaned by a dead consumer) and
// then blocks for new ones.
func (q *RedisStreamScanEventQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		cursor := "0-0"
		claimAt := time.Now().Add(q.cfg.ClaimMinIdleTime)
		for ctx.Err() == nil {
			if !time.Now().Before(claimAt) {
				cursor = q.reclaim(ctx, cursor, out)
				claimAt = time.Now().Add(q.cfg.ClaimMinIdleTime)
			}
			q.readNew(ctx, out)
		}
	}()
	return out, nil
}

func (q *RedisStreamScanEventQueueImpl) readNew(ctx context.Context, out chan<- Delivery) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroupName,
		Consumer: q.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    batchSize,
		Block:    q.cfg.ReadGroupBlockTime,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil), ctx.Err() != nil:
		return
	case err != nil:
		q.log.Error("read scan events failed", zap.Error(err))
		sleepCtx(ctx, time.Second)
		return
	}

	for _, stream := range streams {
		if !q.deliver(ctx, out, stream.Messages) {
			return
		}
	}
}

// reclaim moves idle pending entries from cursor on to this consumer and returns
// the cursor for the next pass.
func (q *RedisStreamScanEventQueueImpl) reclaim(ctx context.Context, cursor string, out chan<- Delivery) string {
	msgs, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroupName,
		Consumer: q.consumer,
		MinIdle:  q.cfg.ClaimMinIdleTime,
		Start:    cursor,
		Count:    batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		if ctx.Err() == nil {
			q.log.Error("reclaim scan events failed", zap.Error(err))
		}
		return cursor
	}

	q.deliver(ctx, out, q.dropExhausted(ctx, msgs))
	if next == "" {
		next = "0-0"
	}
	return next
}

// dropExhausted acks reclaimed entries that already reached MaxRetryCount deliveries.
func (q *RedisStreamScanEventQueueImpl) dropExhausted(ctx context.Context, msgs []redis.XMessage) []redis.XMessage {
	if len(msgs) == 0 {
		return msgs
	}
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroupName,
		Consumer: q.consumer,
		Start:    msgs[0].ID,
		End:      msgs[len(msgs)-1].ID,
		Count:    int64(len(msgs)) * batchSize,
	}).Result()
	if err != nil {
		q.log.Warn("delivery counts unavailable, retrying all", zap.Error(err))
		return msgs
	}

	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.RetryCount
	}

	kept := msgs[:0]
	for _, msg := range msgs {
		if n := deliveries[msg.ID]; n >= int64(q.cfg.MaxRetryCount) {
			q.log.Warn("dropping scan event after repeated failures",
				zap.String("message_id", msg.ID),
				zap.Int64("deliveries", n))
			q.ack(ctx, msg.ID)
			continue
		}
		kept = append(kept, msg)
	}
	return kept
}

// deliver hands msgs to out in order. It reports false once ctx is done.
func (q *RedisStreamScanEventQueueImpl) deliver(ctx context.Context, out chan<- Delivery, msgs []redis.XMessage) bool {
	for _, msg := range msgs {
		event, err := decodeScanEvent(msg)
		if err != nil {
			q.log.Warn("dropping undecodable scan event", zap.String("message_id", msg.ID), zap.Error(err))
			q.ack(ctx, msg.ID)
			continue
		}

		id := msg.ID
		d := Delivery{
			Data: event,
			Ack:  func() { q.ack(ctx, id) },
			Nack: func(requeue bool) {
				// a requeued entry stays pending until reclaim hands it out again
				if !requeue {
					q.ack(ctx, id)
				}
			},
		}
		select {
		case out <- d:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (q *RedisStreamScanEventQueueImpl) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, StreamKey, ConsumerGroupName, id).Err(); err != nil {
		q.log.Error("ack scan event failed", zap.String("message_id", id), zap.Error(err))
	}
}

func decodeScanEvent(msg redis.XMessage) (*model.ScanEvent, error) {
	raw, ok := msg.Values[eventField].(string)
	if !ok {
		return nil, fmt.Errorf("missing %q field", eventField)
	}
	var event model.ScanEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
