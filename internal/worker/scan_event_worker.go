package worker

import (
	"context"
	"errors"

	"event-checkin/internal/queue"
	"event-checkin/internal/service"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"go.uber.org/zap"
)

type ScanEventWorker interface {
	// Start subscribes to the scan-event queue and applies deliveries until ctx is done.
	Start(ctx context.Context) error
}

type ScanEventWorkerImpl struct {
	service service.ScannerSessionService
	queue   queue.ScanEventQueue
}

func NewScanEventWorker(service service.ScannerSessionService, queue queue.ScanEventQueue) ScanEventWorker {
	return &ScanEventWorkerImpl{
		service: service,
		queue:   queue,
	}
}

func (w *ScanEventWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			w.handle(ctx, msg)
		}
	}()
	return nil
}

func (w *ScanEventWorkerImpl) handle(ctx context.Context, msg queue.Delivery) {
	err := w.service.Apply(ctx, msg.Data)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, apperrors.ErrInvalidInput):
		// malformed events never succeed on retry
		logger.WithComponent("worker").Error("dropping scan event",
			zap.String("kind", string(msg.Data.Kind)), zap.Error(err))
		msg.Nack(false)
	default:
		logger.WithComponent("worker").Warn("scan event failed, requeueing",
			zap.String("session_id", msg.Data.SessionID.String()), zap.Error(err))
		msg.Nack(true)
	}
}
