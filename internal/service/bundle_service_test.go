package service

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleService_Prepare(t *testing.T) {
	ctx := context.Background()

	t.Run("more than the cap is rejected with the cap named", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.seedEvent(t)
		guests := env.seedGuests(t, event.ID, 1001)
		svc := NewBundleService(env.events, env.guestStore, 1000, 500)

		ids := make([]uuid.UUID, len(guests))
		for i, g := range guests {
			ids[i] = g.ID
		}
		_, err := svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, GuestIDs: ids, Format: BundlePDF})
		require.ErrorIs(t, err, apperrors.ErrBundleTooLarge)
		assert.Contains(t, err.Error(), "1000")

		_, err = svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: BundleZIP})
		require.ErrorIs(t, err, apperrors.ErrBundleTooLarge)
		assert.Contains(t, err.Error(), "1000")
	})

	t.Run("above the warning threshold needs confirmation", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.seedEvent(t)
		env.seedGuests(t, event.ID, 6)
		svc := NewBundleService(env.events, env.guestStore, 10, 5)

		plan, err := svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: BundleZIP})
		require.NoError(t, err)
		assert.True(t, plan.RequiresConfirmation)
		assert.NotEmpty(t, plan.Warning)

		plan, err = svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: BundleZIP, Confirmed: true})
		require.NoError(t, err)
		assert.False(t, plan.RequiresConfirmation)
		assert.NotEmpty(t, plan.Warning)
		assert.Len(t, plan.Guests, 6)
	})

	t.Run("rejects unknown format and foreign guests", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.seedEvent(t)
		other := env.seedEvent(t)
		foreign := env.seedGuests(t, other.ID, 1)[0]
		svc := NewBundleService(env.events, env.guestStore, 10, 5)

		_, err := svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: "tar"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, GuestIDs: []uuid.UUID{foreign.ID}, Format: BundlePDF})
		assert.ErrorIs(t, err, apperrors.ErrGuestNotFound)
	})

	t.Run("only the owner may export", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.seedEvent(t)
		env.seedGuests(t, event.ID, 1)
		svc := NewBundleService(env.events, env.guestStore, 10, 5)

		_, err := svc.Prepare(ctx, usher, BundleRequest{EventID: event.ID, Format: BundlePDF})
		assert.ErrorIs(t, err, apperrors.ErrNotEventOwner)
	})

	t.Run("inline guests are used as given", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.seedEvent(t)
		svc := NewBundleService(env.events, env.guestStore, 10, 5)

		plan, err := svc.Prepare(ctx, owner, BundleRequest{
			EventID: event.ID,
			Format:  BundlePDF,
			Guests:  []BundleGuest{{Name: "Walk-in", UniqueCode: "WALKIN1"}},
		})
		require.NoError(t, err)
		require.Len(t, plan.Guests, 1)
		assert.Equal(t, "WALKIN1", plan.Guests[0].UniqueCode)
		assert.Equal(t, "gala-dinner-qr-codes.pdf", plan.Filename())
		assert.Equal(t, "application/pdf", plan.ContentType())
	})
}

func TestBundleService_Write(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.seedEvent(t)
	env.seedGuests(t, event.ID, 3)
	svc := NewBundleService(env.events, env.guestStore, 10, 5)

	t.Run("pdf", func(t *testing.T) {
		plan, err := svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: BundlePDF})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, svc.Write(ctx, &buf, plan))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	})

	t.Run("zip", func(t *testing.T) {
		plan, err := svc.Prepare(ctx, owner, BundleRequest{EventID: event.ID, Format: BundleZIP})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, svc.Write(ctx, &buf, plan))

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		assert.Len(t, zr.File, 6)
	})
}

func TestBundlePlanFilenameFallback(t *testing.T) {
	plan := &BundlePlan{Event: &model.Event{Title: "!!!"}, Format: BundleZIP}
	assert.Equal(t, "event-qr-codes.zip", plan.Filename())
	assert.Equal(t, "application/zip", plan.ContentType())
}
