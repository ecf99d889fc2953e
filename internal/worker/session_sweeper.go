package worker

import (
	"context"
	"time"

	"event-checkin/internal/service"
	"event-checkin/pkg/logger"

	"go.uber.org/zap"
)

// SessionSweeper periodically ends scanner sessions that stopped heartbeating.
type SessionSweeper struct {
	sessions service.ScannerSessionService
	interval time.Duration
	idle     time.Duration
}

func NewSessionSweeper(sessions service.ScannerSessionService, interval, idle time.Duration) *SessionSweeper {
	return &SessionSweeper{sessions: sessions, interval: interval, idle: idle}
}

func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.EndStale(ctx, s.idle)
			if err != nil {
				logger.WithComponent("worker").Warn("end stale sessions failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.WithComponent("worker").Info("ended stale scanner sessions", zap.Int64("count", n))
			}
		}
	}
}
