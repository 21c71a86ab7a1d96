package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/pkg/idx"
)

// AuditService records authentication events. Writes are best effort: a
// failed audit insert is logged and never fails the request that caused it.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger
}

func NewAuditService(st store.Store, logger *slog.Logger) *AuditService {
	return &AuditService{Store: st, Logger: logger}
}

func (s *AuditService) LoginSuccess(ctx context.Context, userID int64, remoteAddr string) {
	s.record(ctx, domain.AuditLogin, &userID, remoteAddr)
}

func (s *AuditService) LoginFailure(ctx context.Context, remoteAddr string) {
	s.record(ctx, domain.AuditFailedLogin, nil, remoteAddr)
}

func (s *AuditService) Logout(ctx context.Context, userID int64, remoteAddr string) {
	s.record(ctx, domain.AuditLogout, &userID, remoteAddr)
}

func (s *AuditService) record(ctx context.Context, action string, userID *int64, remoteAddr string) {
	event := domain.AuditEvent{
		ID:         idx.New().String(),
		UserID:     userID,
		Action:     action,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
	}
	if err := s.Store.AuditLog().InsertEvent(ctx, event); err != nil {
		s.Logger.WarnContext(ctx, "failed to record audit event",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
