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
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GuestRepository interface {
	Create(ctx context.Context, guest *model.Guest) (*model.Guest, error)
	CreateBulk(ctx context.Context, guests []*model.Guest) ([]*model.Guest, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Guest, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Guest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Guest, error)
	FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*model.Guest, error)
	Update(ctx context.Context, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBulk(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error)

	// CheckIn performs the first check-in. It only succeeds while checked_in is false and
	// returns ErrAlreadyCheckedIn together with the stored guest when another commit won.
	CheckIn(ctx context.Context, id uuid.UUID, params model.CheckInParams) (*model.Guest, error)
	SetCheckedIn(ctx context.Context, id uuid.UUID, checkedIn bool, params model.CheckInParams) (*model.Guest, error)
	MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type GuestRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewGuestRepository(pool *pgxpool.Pool) GuestRepository {
	return &GuestRepositoryImpl{
		pool: pool,
	}
}

const guestColumns = `id, event_id, name, email, phone, seating_area, cuisine_choice,
	unique_code, checked_in, checked_in_at, checked_in_by, usher_name, usher_email,
	attended, photo_url, first_checkin_at, invitation_sent, invitation_sent_at, created_at`

func scanGuest(row pgx.Row) (*model.Guest, error) {
	var guest model.Guest
	err := row.Scan(
		&guest.ID,
		&guest.EventID,
		&guest.Name,
		&guest.Email,
		&guest.Phone,
		&guest.SeatingArea,
		&guest.CuisineChoice,
		&guest.UniqueCode,
		&guest.CheckedIn,
		&guest.CheckedInAt,
		&guest.CheckedInBy,
		&guest.UsherName,
		&guest.UsherEmail,
		&guest.Attended,
		&guest.PhotoURL,
		&guest.FirstCheckinAt,
		&guest.InvitationSent,
		&guest.InvitationSentAt,
		&guest.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGuestNotFound
		}
		return nil, err
	}
	return &guest, nil
}

func scanGuests(rows pgx.Rows) ([]*model.Guest, error) {
	defer rows.Close()

	guests := make([]*model.Guest, 0)
	for rows.Next() {
		guest, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, guest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return guests, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperrors.ErrDuplicateCode
		case pgerrcode.ForeignKeyViolation:
			return apperrors.ErrEventNotFound
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, pgErr.ConstraintName)
		}
	}
	return err
}

const insertGuestQuery = `
	INSERT INTO guests (event_id, name, email, phone, seating_area, cuisine_choice, unique_code)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + guestColumns

func insertGuestArgs(g *model.Guest) []interface{} {
	return []interface{}{g.EventID, g.Name, g.Email, g.Phone, g.SeatingArea, g.CuisineChoice, g.UniqueCode}
}

func (r *GuestRepositoryImpl) Create(ctx context.Context, guest *model.Guest) (*model.Guest, error) {
	created, err := scanGuest(r.pool.QueryRow(ctx, insertGuestQuery, insertGuestArgs(guest)...))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

// CreateBulk inserts every guest in one transaction; a single bad row aborts the batch.
func (r *GuestRepositoryImpl) CreateBulk(ctx context.Context, guests []*model.Guest) ([]*model.Guest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, g := range guests {
		batch.Queue(insertGuestQuery, insertGuestArgs(g)...)
	}

	results := tx.SendBatch(ctx, batch)
	created := make([]*model.Guest, 0, len(guests))
	for range guests {
		guest, err := scanGuest(results.QueryRow())
		if err != nil {
			results.Close()
			return nil, mapWriteError(err)
		}
		created = append(created, guest)
	}
	if err := results.Close(); err != nil {
		return nil, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *GuestRepositoryImpl) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests WHERE event_id = $1 ORDER BY name, created_at`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return scanGuests(rows)
}

func (r *GuestRepositoryImpl) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Guest, error) {
	if len(ids) == 0 {
		return []*model.Guest{}, nil
	}
	query := `SELECT ` + guestColumns + ` FROM guests WHERE id = ANY($1::uuid[]) ORDER BY name, created_at`
	rows, err := r.pool.Query(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	return scanGuests(rows)
}

func (r *GuestRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests WHERE id = $1`
	return scanGuest(r.pool.QueryRow(ctx, query, id))
}

func (r *GuestRepositoryImpl) FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*model.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests WHERE event_id = $1 AND unique_code = $2`
	return scanGuest(r.pool.QueryRow(ctx, query, eventID, code))
}

func (r *GuestRepositoryImpl) Update(ctx context.Context, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Email != nil {
		add("email", nullIfEmpty(*params.Email))
	}
	if params.Phone != nil {
		add("phone", nullIfEmpty(*params.Phone))
	}
	if params.SeatingArea != nil {
		add("seating_area", nullIfEmpty(string(*params.SeatingArea)))
	}
	if params.CuisineChoice != nil {
		add("cuisine_choice", nullIfEmpty(string(*params.CuisineChoice)))
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE guests
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), argPos, guestColumns)

	guest, err := scanGuest(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return guest, nil
}

func (r *GuestRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM guests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrGuestNotFound
	}
	return nil
}

func (r *GuestRepositoryImpl) DeleteBulk(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx,
		`DELETE FROM guests WHERE event_id = $1 AND id = ANY($2::uuid[])`,
		eventID, uuidStrings(ids),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *GuestRepositoryImpl) CheckIn(ctx context.Context, id uuid.UUID, params model.CheckInParams) (*model.Guest, error) {
	query := `
		UPDATE guests
		SET checked_in = true,
			attended = true,
			checked_in_at = $1,
			checked_in_by = $2,
			usher_name = $3,
			usher_email = $4,
			first_checkin_at = COALESCE(first_checkin_at, $1),
			photo_url = COALESCE($5, photo_url)
		WHERE id = $6 AND checked_in = false
		RETURNING ` + guestColumns

	guest, err := scanGuest(r.pool.QueryRow(ctx, query,
		params.At.UTC(),
		params.Usher.UserID,
		nullIfEmpty(params.Usher.Name),
		nullIfEmpty(params.Usher.Email),
		params.PhotoURL,
		id,
	))
	if err == nil {
		return guest, nil
	}
	if !errors.Is(err, apperrors.ErrGuestNotFound) {
		return nil, err
	}

	// Zero rows: either the guest does not exist or another commit got there first.
	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if current.CheckedIn {
		return current, apperrors.ErrAlreadyCheckedIn
	}
	return nil, fmt.Errorf("check-in of guest %s affected no rows", id)
}

// SetCheckedIn is the administrative toggle. Undoing a check-in keeps first_checkin_at
// and photo_url so the original attendance record survives.
func (r *GuestRepositoryImpl) SetCheckedIn(ctx context.Context, id uuid.UUID, checkedIn bool, params model.CheckInParams) (*model.Guest, error) {
	var query string
	var args []interface{}

	if checkedIn {
		query = `
			UPDATE guests
			SET checked_in = true,
				attended = true,
				checked_in_at = $1,
				checked_in_by = $2,
				usher_name = $3,
				usher_email = $4,
				first_checkin_at = COALESCE(first_checkin_at, $1)
			WHERE id = $5
			RETURNING ` + guestColumns
		args = []interface{}{
			params.At.UTC(),
			params.Usher.UserID,
			nullIfEmpty(params.Usher.Name),
			nullIfEmpty(params.Usher.Email),
			id,
		}
	} else {
		query = `
			UPDATE guests
			SET checked_in = false,
				checked_in_at = NULL
			WHERE id = $1
			RETURNING ` + guestColumns
		args = []interface{}{id}
	}

	return scanGuest(r.pool.QueryRow(ctx, query, args...))
}

func (r *GuestRepositoryImpl) MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE guests SET invitation_sent = true, invitation_sent_at = $1 WHERE id = $2`,
		at.UTC(), id,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrGuestNotFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
