package repository_test

import (
	"context"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/repository"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository_Create(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	venue := "Grand Ballroom"
	created, err := repo.Create(ctx, &model.Event{
		Title:    "Gala Dinner",
		StartsAt: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
		Venue:    &venue,
		OwnerID:  "owner-1",
		Status:   model.EventStatusDraft,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Gala Dinner", created.Title)
	require.NotNil(t, created.Venue)
	assert.Equal(t, venue, *created.Venue)
	assert.Zero(t, created.TotalGuests)
	assert.NotZero(t, created.CreatedAt)

	_, err = repo.Create(ctx, &model.Event{Title: "Bad", StartsAt: time.Now(), OwnerID: "o", Status: "archived"})
	assert.Error(t, err, "status check constraint")
}

func TestEventRepository_ListFilters(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	for i, owner := range []string{"a", "a", "b"} {
		_, err := repo.Create(ctx, &model.Event{
			Title:    "Event",
			StartsAt: base.Add(time.Duration(i) * 24 * time.Hour),
			OwnerID:  owner,
			Status:   model.EventStatusActive,
		})
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, model.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartsAt.After(all[1].StartsAt), "newest first")

	byOwner, err := repo.List(ctx, model.EventFilter{OwnerID: "a"})
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	after := base.Add(12 * time.Hour)
	later, err := repo.List(ctx, model.EventFilter{StartsAfter: &after})
	require.NoError(t, err)
	assert.Len(t, later, 2)

	drafts, err := repo.List(ctx, model.EventFilter{Status: model.EventStatusDraft})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestEventRepository_UpdateAndDelete(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()
	event := createTestEvent(t, db, "Gala")
	createTestGuest(t, db, event, "Ada", "ADA001")

	title := "Renamed"
	updated, err := repo.Update(ctx, event.ID, model.UpdateEventParams{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, event.OwnerID, updated.OwnerID)

	require.NoError(t, repo.UpdateStatus(ctx, event.ID, model.EventStatusCompleted))
	got, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusCompleted, got.Status)

	require.NoError(t, repo.Delete(ctx, event.ID))
	assertRowCount(t, db, "guests", 0)

	_, err = repo.FindByID(ctx, event.ID)
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, event.ID), apperrors.ErrEventNotFound)
}

func TestEventRepository_RefreshCounters(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewEventRepository(db)
	guests := repository.NewGuestRepository(db)
	ctx := context.Background()

	event := createTestEvent(t, db, "Gala")
	ada := createTestGuest(t, db, event, "Ada", "ADA001")
	createTestGuest(t, db, event, "Bo", "BO0001")

	_, err := guests.CheckIn(ctx, ada.ID, model.CheckInParams{Usher: model.Usher{UserID: "usher-1"}, At: time.Now()})
	require.NoError(t, err)

	total, checkedIn, err := repo.RefreshCounters(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, checkedIn)

	got, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalGuests)
	assert.Equal(t, 1, got.CheckedInGuests)

	_, _, err = repo.RefreshCounters(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
}
