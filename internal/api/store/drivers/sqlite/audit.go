package sqlite

import (
	"context"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
)

type auditRepo struct {
	q dbtx
}

func (r *auditRepo) InsertEvent(ctx context.Context, e domain.AuditEvent) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, action, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Action, e.RemoteAddr, millis(createdAt))
	return err
}

func (r *auditRepo) DeleteEventsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, millis(cutoff))
	return err
}
