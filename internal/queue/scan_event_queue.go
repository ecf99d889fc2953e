package queue

import (
	"context"

	"event-checkin/internal/model"
	"event-checkin/pkg/logger"

	"go.uber.org/zap"
)

type Delivery struct {
	Data *model.ScanEvent
	Ack  func()
	Nack func(requeue bool)
}

type ScanEventQueue interface {
	Publish(ctx context.Context, event *model.ScanEvent) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

// ScanEventQueueImpl is the in-process queue used when Redis streams are disabled and in tests.
type ScanEventQueueImpl struct {
	ch chan *model.ScanEvent
}

func NewScanEventQueue(bufferSize int) ScanEventQueue {
	return &ScanEventQueueImpl{
		ch: make(chan *model.ScanEvent, bufferSize),
	}
}

func (q *ScanEventQueueImpl) Publish(ctx context.Context, event *model.ScanEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ScanEventQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						select {
						case q.ch <- event:
						default:
							logger.WithComponent("mq").Warn("queue full, dropping requeued scan event",
								zap.String("session_id", event.SessionID.String()),
								zap.String("kind", string(event.Kind)))
						}
					},
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
