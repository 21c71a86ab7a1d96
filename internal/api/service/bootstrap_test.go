package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBootstrapEnsureAdmin(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	svc := &service.BootstrapService{
		Store:         st,
		Logger:        discardLogger(),
		AdminEmail:    "admin@example.com",
		AdminPassword: "bootstrap-pass",
	}

	require.NoError(t, svc.EnsureAdmin(ctx))

	admin, err := st.Users().GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.True(t, admin.Administrator)
	require.True(t, admin.PasswordValid("bootstrap-pass"))

	// Idempotent on restart.
	require.NoError(t, svc.EnsureAdmin(ctx))
	count, err := st.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestBootstrapSkipsNonEmptyDatabase(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	createUser(t, st, domain.User{Email: "existing@example.com"}, "pass")

	svc := &service.BootstrapService{
		Store:         st,
		Logger:        discardLogger(),
		AdminEmail:    "admin@example.com",
		AdminPassword: "bootstrap-pass",
	}
	require.NoError(t, svc.EnsureAdmin(ctx))

	count, err := st.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestBootstrapUnconfigured(t *testing.T) {
	st := newTestStore(t)

	svc := &service.BootstrapService{Store: st, Logger: discardLogger()}
	require.NoError(t, svc.EnsureAdmin(context.Background()))

	count, err := st.Users().CountUsers(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
