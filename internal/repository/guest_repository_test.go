package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/repository"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestRepository_Create(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewGuestRepository(db)
	ctx := context.Background()
	event := createTestEvent(t, db, "Gala")

	seating := model.SeatingReserved
	created, err := repo.Create(ctx, &model.Guest{
		EventID:     event.ID,
		Name:        "Ada",
		UniqueCode:  "ADA001",
		SeatingArea: &seating,
	})
	require.NoError(t, err)
	assert.False(t, created.CheckedIn)
	require.NotNil(t, created.SeatingArea)
	assert.Equal(t, seating, *created.SeatingArea)

	t.Run("duplicate code in the same event", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Guest{EventID: event.ID, Name: "Other", UniqueCode: "ADA001"})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateCode)
	})

	t.Run("same code in another event", func(t *testing.T) {
		other := createTestEvent(t, db, "Other")
		_, err := repo.Create(ctx, &model.Guest{EventID: other.ID, Name: "Ada", UniqueCode: "ADA001"})
		assert.NoError(t, err)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Guest{EventID: uuid.New(), Name: "Ghost", UniqueCode: "GHOST1"})
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
	})

	t.Run("code with a colon", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Guest{EventID: event.ID, Name: "Bad", UniqueCode: "A:B"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestGuestRepository_CreateBulk(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewGuestRepository(db)
	ctx := context.Background()
	event := createTestEvent(t, db, "Gala")
	createTestGuest(t, db, event, "Existing", "CLASH1")

	_, err := repo.CreateBulk(ctx, []*model.Guest{
		{EventID: event.ID, Name: "One", UniqueCode: "ONE001"},
		{EventID: event.ID, Name: "Clash", UniqueCode: "CLASH1"},
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCode)
	assertRowCount(t, db, "guests", 1)

	created, err := repo.CreateBulk(ctx, []*model.Guest{
		{EventID: event.ID, Name: "One", UniqueCode: "ONE001"},
		{EventID: event.ID, Name: "Two", UniqueCode: "TWO002"},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assertRowCount(t, db, "guests", 3)

	list, err := repo.ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Existing", list[0].Name, "ordered by name")

	byIDs, err := repo.ListByIDs(ctx, []uuid.UUID{created[1].ID, created[0].ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)
}

func TestGuestRepository_UpdateDelete(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewGuestRepository(db)
	ctx := context.Background()
	event := createTestEvent(t, db, "Gala")
	ada := createTestGuest(t, db, event, "Ada", "ADA001")
	bo := createTestGuest(t, db, event, "Bo", "BO0001")

	phone := "+62 812 000"
	updated, err := repo.Update(ctx, ada.ID, model.UpdateGuestParams{Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
	assert.Equal(t, "Ada", updated.Name)

	found, err := repo.FindByCode(ctx, event.ID, "ADA001")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, found.ID)
	_, err = repo.FindByCode(ctx, event.ID, "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrGuestNotFound)

	require.NoError(t, repo.MarkInvitationSent(ctx, ada.ID, time.Now()))
	found, err = repo.FindByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, found.InvitationSent)
	assert.NotNil(t, found.InvitationSentAt)

	require.NoError(t, repo.Delete(ctx, ada.ID))
	assert.ErrorIs(t, repo.Delete(ctx, ada.ID), apperrors.ErrGuestNotFound)

	other := createTestEvent(t, db, "Other")
	n, err := repo.DeleteBulk(ctx, other.ID, []uuid.UUID{bo.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "ids from another event are left alone")

	n, err = repo.DeleteBulk(ctx, event.ID, []uuid.UUID{bo.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGuestRepository_CheckIn(t *testing.T) {
	db := getTestDB(t)
	repo := repository.NewGuestRepository(db)
	ctx := context.Background()
	event := createTestEvent(t, db, "Gala")
	guest := createTestGuest(t, db, event, "Ada", "ABC123")

	const ushers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for i := 0; i < ushers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "usher-" + string(rune('a'+i))
			g, err := repo.CheckIn(ctx, guest.ID, model.CheckInParams{
				Usher: model.Usher{UserID: id, Name: "Usher " + id},
				At:    time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case assert.ErrorIs(t, err, apperrors.ErrAlreadyCheckedIn):
				assert.True(t, g.CheckedIn, "loser sees the winner's record")
				losers++
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, ushers-1, losers)

	stored, err := repo.FindByID(ctx, guest.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CheckedInBy)
	assert.Equal(t, winners[0], *stored.CheckedInBy)
	require.NotNil(t, stored.FirstCheckinAt)
	first := *stored.FirstCheckinAt

	t.Run("undo keeps the first check-in", func(t *testing.T) {
		undone, err := repo.SetCheckedIn(ctx, guest.ID, false, model.CheckInParams{})
		require.NoError(t, err)
		assert.False(t, undone.CheckedIn)
		assert.Nil(t, undone.CheckedInAt)
		require.NotNil(t, undone.FirstCheckinAt)
		assert.True(t, first.Equal(*undone.FirstCheckinAt))

		redone, err := repo.SetCheckedIn(ctx, guest.ID, true, model.CheckInParams{Usher: model.Usher{UserID: "admin"}, At: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.True(t, redone.CheckedIn)
		assert.True(t, first.Equal(*redone.FirstCheckinAt))
	})

	t.Run("unknown guest", func(t *testing.T) {
		_, err := repo.CheckIn(ctx, uuid.New(), model.CheckInParams{At: time.Now()})
		assert.ErrorIs(t, err, apperrors.ErrGuestNotFound)
	})
}
