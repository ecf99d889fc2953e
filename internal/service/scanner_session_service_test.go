package service

import (
	"context"
	"testing"
	"time"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerSessionService_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := newTestEnv(t)
	event := env.seedEvent(t)

	first, err := env.sessions.Start(ctx, usher, event.ID)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, "Uma", first.UsherName)

	second, err := env.sessions.Start(ctx, usher, event.ID)
	require.NoError(t, err)

	prior, ok := env.db.Session(first.ID)
	require.True(t, ok)
	assert.False(t, prior.IsActive, "starting a new session ends the previous one")
	assert.NotNil(t, prior.SessionEnd)

	other := &model.AuthUser{ID: "usher-2", Role: model.RoleUsher}
	assert.ErrorIs(t, env.sessions.End(ctx, other, second.ID), apperrors.ErrSessionNotFound)

	// queued bookkeeping is applied by the worker; drive it by hand here
	env.sessions.Record(ctx, model.ScanEventIncrement, second.ID)
	deliveries, err := env.queue.Subscribe(ctx)
	require.NoError(t, err)
	d := <-deliveries
	require.NoError(t, env.sessions.Apply(ctx, d.Data))

	stored, _ := env.db.Session(second.ID)
	assert.Equal(t, 1, stored.ScanCount)

	require.NoError(t, env.sessions.End(ctx, usher, second.ID))
	ended, _ := env.db.Session(second.ID)
	assert.False(t, ended.IsActive)

	// late updates for an ended session are dropped, not retried
	assert.NoError(t, env.sessions.Apply(ctx, &model.ScanEvent{Kind: model.ScanEventTouch, SessionID: second.ID, At: time.Now()}))
	assert.ErrorIs(t, env.sessions.Apply(ctx, &model.ScanEvent{Kind: "bogus", SessionID: uuid.New()}), apperrors.ErrInvalidInput)

	list, err := env.sessions.ListByEvent(ctx, owner, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestScannerSessionService_EndStale(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.seedEvent(t)

	_, err := env.sessions.Start(ctx, usher, event.ID)
	require.NoError(t, err)

	n, err := env.sessions.EndStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = env.sessions.EndStale(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestScannerSessionService_StartUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sessions.Start(context.Background(), usher, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
}
