package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"event-checkin/internal/cache"
	"event-checkin/internal/metrics"
	"event-checkin/internal/model"
	"event-checkin/internal/storage"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CommitRequest struct {
	GuestID   uuid.UUID
	Usher     model.Usher
	SessionID *uuid.UUID
	// Photo is nil when the usher skipped the photo step.
	Photo io.Reader
}

type CheckinService interface {
	// Classify decides what a decoded payload means for the active event without mutating anything.
	Classify(ctx context.Context, activeEventID uuid.UUID, payload string) (*model.ScanResult, error)
	// Scan classifies under the shared in-flight guard and records session activity.
	Scan(ctx context.Context, user *model.AuthUser, req model.ScanRequest) (*model.ScanResult, error)
	// Commit performs the first check-in. A lost race yields outcome "already" with the winner's record.
	Commit(ctx context.Context, req CommitRequest) (*model.CommitResult, error)
	// Toggle is the administrative undo/redo of a check-in.
	Toggle(ctx context.Context, user *model.AuthUser, guestID uuid.UUID, checkedIn bool) (*model.Guest, error)
	AllCheckedIn(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type CheckinServiceImpl struct {
	guests   *store.GuestStore
	events   *store.EventStore
	eventSvc EventService
	sessions ScannerSessionService
	guard    cache.ScanGuard
	objects  storage.ObjectStore
	cooldown time.Duration
	maxEdge  int
	now      func() time.Time
}

type CheckinOptions struct {
	ErrorCooldown time.Duration
	MaxPhotoEdge  int
}

func NewCheckinService(
	guests *store.GuestStore,
	events *store.EventStore,
	eventSvc EventService,
	sessions ScannerSessionService,
	guard cache.ScanGuard,
	objects storage.ObjectStore,
	opts CheckinOptions,
) CheckinService {
	return &CheckinServiceImpl{
		guests:   guests,
		events:   events,
		eventSvc: eventSvc,
		sessions: sessions,
		guard:    guard,
		objects:  objects,
		cooldown: opts.ErrorCooldown,
		maxEdge:  opts.MaxPhotoEdge,
		now:      time.Now,
	}
}

func (s *CheckinServiceImpl) Classify(ctx context.Context, activeEventID uuid.UUID, raw string) (*model.ScanResult, error) {
	payload, err := model.ParseQRPayload(raw)
	if err != nil {
		return &model.ScanResult{Outcome: model.ScanInvalidPayload, Message: "Invalid QR code"}, nil
	}

	if payload.EventID != activeEventID.String() {
		return &model.ScanResult{Outcome: model.ScanWrongEvent, Message: "This QR code belongs to a different event"}, nil
	}

	if err := s.guests.EnsureEvent(ctx, activeEventID); err != nil {
		return nil, err
	}

	guest, ok := s.guests.LookupCode(activeEventID, payload.UniqueCode)
	if !ok {
		return &model.ScanResult{Outcome: model.ScanNotFound, Message: "Guest not found"}, nil
	}
	if guest.CheckedIn {
		return &model.ScanResult{Outcome: model.ScanDuplicate, Message: "Guest already checked in", Guest: guest}, nil
	}
	return &model.ScanResult{Outcome: model.ScanSuccess, Message: "Guest identified", Guest: guest}, nil
}

func guardScope(user *model.AuthUser, req model.ScanRequest) string {
	if req.SessionID != nil {
		return "session:" + req.SessionID.String()
	}
	return fmt.Sprintf("user:%s:event:%s", user.ID, req.EventID)
}

func (s *CheckinServiceImpl) Scan(ctx context.Context, user *model.AuthUser, req model.ScanRequest) (*model.ScanResult, error) {
	log := logger.WithComponent("service")
	if req.SessionID != nil && !s.sessions.Owns(ctx, user.ID, req.EventID, *req.SessionID) {
		log.Warn("ignoring scanner session not owned by caller",
			zap.String("session_id", req.SessionID.String()), zap.String("user_id", user.ID))
		req.SessionID = nil
	}
	scope := guardScope(user, req)
	token := uuid.NewString()

	guarded := true
	if err := s.guard.Acquire(ctx, scope, req.Payload, token); err != nil {
		if errors.Is(err, apperrors.ErrScannerBusy) || errors.Is(err, apperrors.ErrScanCooldown) {
			return nil, err
		}
		// proceed unguarded while Redis is unreachable
		log.Warn("scan guard unavailable", zap.String("scope", scope), zap.Error(err))
		guarded = false
	}

	result, err := s.Classify(ctx, req.EventID, req.Payload)

	if guarded {
		var cooldown time.Duration
		if err == nil && result.Outcome.IsError() {
			cooldown = s.cooldown
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if relErr := s.guard.Release(releaseCtx, scope, req.Payload, token, cooldown); relErr != nil {
			log.Warn("scan guard release failed", zap.String("scope", scope), zap.Error(relErr))
		}
		cancel()
	}

	if err != nil {
		return nil, err
	}

	metrics.TrackScan(string(result.Outcome))
	if result.Outcome == model.ScanSuccess && req.SessionID != nil {
		s.sessions.Record(ctx, model.ScanEventIncrement, *req.SessionID)
	}
	return result, nil
}

func (s *CheckinServiceImpl) Commit(ctx context.Context, req CommitRequest) (*model.CommitResult, error) {
	guest, err := s.guests.Fetch(ctx, req.GuestID)
	if err != nil {
		return nil, err
	}
	if guest.CheckedIn {
		metrics.TrackCommit(string(model.CommitAlready))
		return &model.CommitResult{Outcome: model.CommitAlready, Guest: guest}, nil
	}

	if req.SessionID != nil && !s.sessions.Owns(ctx, req.Usher.UserID, guest.EventID, *req.SessionID) {
		req.SessionID = nil
	}

	now := s.now()
	params := model.CheckInParams{Usher: req.Usher, At: now}

	var photoKey string
	if req.Photo != nil {
		photoKey = storage.PhotoKey(guest.EventID, guest.ID, now)
		url, err := s.uploadPhoto(ctx, photoKey, req.Photo)
		if err != nil {
			metrics.TrackCommit("failed")
			return nil, err
		}
		params.PhotoURL = &url
	}

	updated, err := s.guests.CheckIn(ctx, req.GuestID, params)
	if err != nil && photoKey != "" {
		s.discardPhoto(ctx, photoKey)
	}
	if errors.Is(err, apperrors.ErrAlreadyCheckedIn) {
		metrics.TrackCommit(string(model.CommitAlready))
		return &model.CommitResult{Outcome: model.CommitAlready, Guest: updated}, nil
	}
	if err != nil {
		metrics.TrackCommit("failed")
		return nil, err
	}

	metrics.TrackCommit(string(model.CommitCheckedIn))
	s.refreshCounters(ctx, updated.EventID)
	if req.SessionID != nil {
		s.sessions.Record(ctx, model.ScanEventTouch, *req.SessionID)
	}
	return &model.CommitResult{Outcome: model.CommitCheckedIn, Guest: updated}, nil
}

func (s *CheckinServiceImpl) uploadPhoto(ctx context.Context, key string, photo io.Reader) (string, error) {
	body, err := storage.CompressPhoto(photo, s.maxEdge)
	if err != nil {
		return "", err
	}
	return s.objects.Put(ctx, key, body, "image/jpeg")
}

// discardPhoto removes a photo uploaded for a check-in that did not happen.
func (s *CheckinServiceImpl) discardPhoto(ctx context.Context, key string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.objects.Delete(delCtx, key); err != nil {
		logger.WithComponent("service").Warn("delete orphaned photo failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CheckinServiceImpl) Toggle(ctx context.Context, user *model.AuthUser, guestID uuid.UUID, checkedIn bool) (*model.Guest, error) {
	guest, err := s.guests.Fetch(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.eventSvc.Authorize(ctx, user, guest.EventID); err != nil {
		return nil, err
	}

	updated, err := s.guests.SetCheckedIn(ctx, guestID, checkedIn, model.CheckInParams{Usher: user.Usher(), At: s.now()})
	if err != nil {
		return nil, err
	}
	s.refreshCounters(ctx, updated.EventID)
	return updated, nil
}

func (s *CheckinServiceImpl) AllCheckedIn(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if err := s.guests.EnsureEvent(ctx, eventID); err != nil {
		return false, err
	}
	return s.guests.AllCheckedIn(eventID), nil
}

func (s *CheckinServiceImpl) refreshCounters(ctx context.Context, eventID uuid.UUID) {
	if _, err := s.events.RefreshCounters(ctx, eventID, true); err != nil {
		logger.WithComponent("service").Warn("refresh event counters failed",
			zap.String("event_id", eventID.String()), zap.Error(err))
	}
}
