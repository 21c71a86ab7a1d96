package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/store"
)

// BootstrapService seeds the initial administrator account so a fresh
// deployment can be signed into at all. It only acts on an empty database.
type BootstrapService struct {
	Store  store.Store
	Logger *slog.Logger

	AdminEmail    string
	AdminPassword string
}

// EnsureAdmin creates the configured administrator when no accounts exist
// yet. The check and the insert run in one transaction, and the email
// uniqueness constraint covers instances racing across processes. It is safe
// to run on every startup.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) error {
	if s.AdminEmail == "" || s.AdminPassword == "" {
		return nil
	}

	admin := domain.User{
		Name:          "admin",
		Email:         s.AdminEmail,
		Administrator: true,
	}
	if err := admin.SetPassword(s.AdminPassword); err != nil {
		return err
	}

	var created int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		count, err := tx.Users().CountUsers(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		created, err = tx.Users().CreateUser(ctx, admin)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Another instance bootstrapped first.
			return nil
		}
		return err
	}

	if created != 0 {
		s.Logger.Info("bootstrapped administrator account",
			slog.Int64("user_id", created),
			slog.String("email", s.AdminEmail),
		)
	}
	return nil
}
