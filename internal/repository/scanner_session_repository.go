package repository

import (
	"context"
	"errors"
	"time"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScannerSessionRepository interface {
	// Start ends any active session the user holds for the event before opening a new one.
	Start(ctx context.Context, session *model.ScannerSession) (*model.ScannerSession, error)
	End(ctx context.Context, id uuid.UUID, at time.Time) error
	EndStale(ctx context.Context, idleSince time.Time) (int64, error)
	IncrementScanCount(ctx context.Context, id uuid.UUID, at time.Time) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.ScannerSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ScannerSession, error)
}

type ScannerSessionRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewScannerSessionRepository(pool *pgxpool.Pool) ScannerSessionRepository {
	return &ScannerSessionRepositoryImpl{
		pool: pool,
	}
}

const sessionColumns = `id, user_id, event_id, usher_name, usher_email, session_start,
	last_activity, session_end, is_active, scan_count`

func scanSession(row pgx.Row) (*model.ScannerSession, error) {
	var s model.ScannerSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.EventID,
		&s.UsherName,
		&s.UsherEmail,
		&s.SessionStart,
		&s.LastActivity,
		&s.SessionEnd,
		&s.IsActive,
		&s.ScanCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *ScannerSessionRepositoryImpl) Start(ctx context.Context, session *model.ScannerSession) (*model.ScannerSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := session.SessionStart.UTC()

	_, err = tx.Exec(ctx, `
		UPDATE scanner_sessions
		SET is_active = false, session_end = $1
		WHERE user_id = $2 AND event_id = $3 AND is_active
	`, now, session.UserID, session.EventID)
	if err != nil {
		return nil, err
	}

	created, err := scanSession(tx.QueryRow(ctx, `
		INSERT INTO scanner_sessions (user_id, event_id, usher_name, usher_email, session_start, last_activity, is_active, scan_count)
		VALUES ($1, $2, $3, $4, $5, $5, true, 0)
		RETURNING `+sessionColumns,
		session.UserID, session.EventID, session.UsherName, session.UsherEmail, now,
	))
	if err != nil {
		return nil, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ScannerSessionRepositoryImpl) End(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scanner_sessions
		SET is_active = false, session_end = COALESCE(session_end, $1)
		WHERE id = $2
	`, at.UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// EndStale closes sessions whose scanner went away without ending them.
func (r *ScannerSessionRepositoryImpl) EndStale(ctx context.Context, idleSince time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE scanner_sessions
		SET is_active = false, session_end = last_activity
		WHERE is_active AND last_activity < $1
	`, idleSince.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *ScannerSessionRepositoryImpl) IncrementScanCount(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scanner_sessions
		SET scan_count = scan_count + 1, last_activity = $1
		WHERE id = $2 AND is_active
	`, at.UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *ScannerSessionRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scanner_sessions
		SET last_activity = $1
		WHERE id = $2 AND is_active
	`, at.UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *ScannerSessionRepositoryImpl) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.ScannerSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM scanner_sessions WHERE event_id = $1 ORDER BY session_start DESC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*model.ScannerSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *ScannerSessionRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.ScannerSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM scanner_sessions WHERE id = $1`, id))
}
