package service_test

import (
	"context"
	"testing"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/stretchr/testify/require"
)

func TestUserServiceCreateUser(t *testing.T) {
	st := newTestStore(t)
	svc := &service.UserService{Store: st}
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.User{
		Name:  "Alice",
		Email: "alice@example.com",
	}, "hunter2")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.PasswordValid("hunter2"))

	t.Run("EmptyPassword", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, domain.User{Email: "b@example.com"}, "   ")
		require.ErrorIs(t, err, service.ErrPasswordRequired)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, domain.User{Email: "alice@example.com"}, "other")
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestUserServiceSetPassword(t *testing.T) {
	st := newTestStore(t)
	svc := &service.UserService{Store: st}
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.User{Email: "alice@example.com"}, "old-pass")
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, user.ID, "new-pass"))

	updated, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, updated.PasswordValid("new-pass"))
	require.False(t, updated.PasswordValid("old-pass"))

	require.ErrorIs(t, svc.SetPassword(ctx, user.ID, ""), service.ErrPasswordRequired)
	require.ErrorIs(t, svc.SetPassword(ctx, user.ID+999, "whatever"), store.ErrNotFound)
}

func TestUserServiceSecondFactorProvisioning(t *testing.T) {
	st := newTestStore(t)
	svc := &service.UserService{Store: st}
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.User{Email: "alice@example.com"}, "hunter2")
	require.NoError(t, err)

	key, err := svc.GenerateTOTPKey(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	// The generated key is not stored until confirmed.
	stored, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.TOTPKey)

	require.NoError(t, svc.SetTOTPKey(ctx, user.ID, key))
	stored, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, key, stored.TOTPKey)

	// Clearing disables the second factor again.
	require.NoError(t, svc.SetTOTPKey(ctx, user.ID, ""))
	stored, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.TOTPKey)

	require.ErrorIs(t, svc.SetTOTPKey(ctx, user.ID, "not base32!"), service.ErrCodeInvalid)
}
