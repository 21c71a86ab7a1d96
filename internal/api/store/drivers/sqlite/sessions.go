package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expiration, created_at)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, millisPtr(s.Expiration), millis(time.Now()))
	return mapConflict(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, expiration, created_at FROM sessions
		WHERE id = ? AND (expiration IS NULL OR expiration > ?)`,
		id, millis(time.Now()))

	var (
		s          domain.Session
		expiration sql.NullInt64
		createdAt  int64
	)
	if err := row.Scan(&s.ID, &s.UserID, &expiration, &createdAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Expiration = fromMillisPtr(expiration)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expiration IS NOT NULL AND expiration <= ?`,
		millis(time.Now()))
	return err
}
