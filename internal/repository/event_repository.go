package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	RefreshCounters(ctx context.Context, id uuid.UUID) (total int, checkedIn int, err error)
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, title, description, starts_at, venue, owner_id, status,
	total_guests, checked_in_guests, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartsAt,
		&event.Venue,
		&event.OwnerID,
		&event.Status,
		&event.TotalGuests,
		&event.CheckedInGuests,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (title, description, starts_at, venue, owner_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + eventColumns

	return scanEvent(r.pool.QueryRow(ctx, query,
		event.Title, event.Description, event.StartsAt.UTC(),
		event.Venue, event.OwnerID, event.Status,
	))
}

func (r *EventRepositoryImpl) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	conds := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.OwnerID != "" {
		conds = append(conds, fmt.Sprintf("owner_id = $%d", argPos))
		args = append(args, filter.OwnerID)
		argPos++
	}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.StartsAfter != nil {
		conds = append(conds, fmt.Sprintf("starts_at > $%d", argPos))
		args = append(args, filter.StartsAfter.UTC())
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY starts_at DESC
	`, eventColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, id))
}

func (r *EventRepositoryImpl) Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if params.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *params.Title)
		argPos++
	}
	if params.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *params.Description)
		argPos++
	}
	if params.StartsAt != nil {
		sets = append(sets, fmt.Sprintf("starts_at = $%d", argPos))
		args = append(args, params.StartsAt.UTC())
		argPos++
	}
	if params.Venue != nil {
		sets = append(sets, fmt.Sprintf("venue = $%d", argPos))
		args = append(args, *params.Venue)
		argPos++
	}
	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	// add updated_at
	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	// add id
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE events
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), argPos, eventColumns)

	return scanEvent(r.pool.QueryRow(ctx, query, args...))
}

func (r *EventRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) error {
	query := `
		UPDATE events
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

// Delete removes the event; guests and scanner sessions go with it via ON DELETE CASCADE.
func (r *EventRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

// RefreshCounters recomputes the denormalized guest counters from the guests table and
// only writes the event row when they drifted.
func (r *EventRepositoryImpl) RefreshCounters(ctx context.Context, id uuid.UUID) (int, int, error) {
	query := `
		WITH c AS (
			SELECT count(*)::int AS total,
				count(*) FILTER (WHERE checked_in)::int AS checked_in
			FROM guests
			WHERE event_id = $1
		), u AS (
			UPDATE events e
			SET total_guests = c.total,
				checked_in_guests = c.checked_in,
				updated_at = $2
			FROM c
			WHERE e.id = $1
				AND (e.total_guests <> c.total OR e.checked_in_guests <> c.checked_in)
			RETURNING e.id
		)
		SELECT c.total, c.checked_in
		FROM c
		WHERE EXISTS (SELECT 1 FROM events WHERE id = $1)
	`

	var total, checkedIn int
	err := r.pool.QueryRow(ctx, query, id, time.Now().UTC()).Scan(&total, &checkedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, apperrors.ErrEventNotFound
		}
		return 0, 0, err
	}
	return total, checkedIn, nil
}
