package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/queue"
	"event-checkin/internal/repository"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScannerSessionService interface {
	Start(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) (*model.ScannerSession, error)
	End(ctx context.Context, user *model.AuthUser, id uuid.UUID) error
	Heartbeat(ctx context.Context, user *model.AuthUser, id uuid.UUID) error
	ListByEvent(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) ([]*model.ScannerSession, error)
	// Owns reports whether sessionID was started by userID for eventID.
	Owns(ctx context.Context, userID string, eventID, sessionID uuid.UUID) bool
	// Record queues a bookkeeping update. Failures are logged and never returned.
	Record(ctx context.Context, kind model.ScanEventKind, sessionID uuid.UUID)
	// Apply performs a queued bookkeeping update; called by the scan-event worker.
	Apply(ctx context.Context, event *model.ScanEvent) error
	// EndStale closes sessions idle for longer than idle.
	EndStale(ctx context.Context, idle time.Duration) (int64, error)
}

type ScannerSessionServiceImpl struct {
	repo   repository.ScannerSessionRepository
	events EventService
	queue  queue.ScanEventQueue
	now    func() time.Time
}

func NewScannerSessionService(repo repository.ScannerSessionRepository, events EventService, q queue.ScanEventQueue) ScannerSessionService {
	return &ScannerSessionServiceImpl{repo: repo, events: events, queue: q, now: time.Now}
}

func (s *ScannerSessionServiceImpl) Start(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) (*model.ScannerSession, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	usher := user.Usher()
	return s.repo.Start(ctx, &model.ScannerSession{
		UserID:       user.ID,
		EventID:      eventID,
		UsherName:    usher.Name,
		UsherEmail:   usher.Email,
		SessionStart: s.now(),
	})
}

func (s *ScannerSessionServiceImpl) owned(ctx context.Context, user *model.AuthUser, id uuid.UUID) (*model.ScannerSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID && user.Role != model.RoleSuperAdmin {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *ScannerSessionServiceImpl) Owns(ctx context.Context, userID string, eventID, sessionID uuid.UUID) bool {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			logger.WithComponent("service").Warn("look up scanner session failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		return false
	}
	return session.UserID == userID && session.EventID == eventID
}

func (s *ScannerSessionServiceImpl) End(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}
	return s.repo.End(ctx, id, s.now())
}

func (s *ScannerSessionServiceImpl) Heartbeat(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}
	s.Record(ctx, model.ScanEventTouch, id)
	return nil
}

func (s *ScannerSessionServiceImpl) ListByEvent(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) ([]*model.ScannerSession, error) {
	if _, err := s.events.Authorize(ctx, user, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *ScannerSessionServiceImpl) Record(ctx context.Context, kind model.ScanEventKind, sessionID uuid.UUID) {
	event := &model.ScanEvent{Kind: kind, SessionID: sessionID, At: s.now()}
	// detached from the request so a finished response does not cancel the publish
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.queue.Publish(pubCtx, event); err != nil {
		logger.WithComponent("service").Warn("queue scanner session update failed",
			zap.String("session_id", sessionID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func (s *ScannerSessionServiceImpl) Apply(ctx context.Context, event *model.ScanEvent) error {
	var err error
	switch event.Kind {
	case model.ScanEventIncrement:
		err = s.repo.IncrementScanCount(ctx, event.SessionID, event.At)
	case model.ScanEventTouch:
		err = s.repo.Touch(ctx, event.SessionID, event.At)
	case model.ScanEventEnd:
		err = s.repo.End(ctx, event.SessionID, event.At)
	default:
		return fmt.Errorf("%w: unknown scan event kind %q", apperrors.ErrInvalidInput, event.Kind)
	}
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		logger.WithComponent("service").Warn("scan event for ended or unknown session",
			zap.String("session_id", event.SessionID.String()),
			zap.String("kind", string(event.Kind)))
		return nil
	}
	return err
}

func (s *ScannerSessionServiceImpl) EndStale(ctx context.Context, idle time.Duration) (int64, error) {
	return s.repo.EndStale(ctx, s.now().Add(-idle))
}
