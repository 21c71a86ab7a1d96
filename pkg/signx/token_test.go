package signx_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *signx.TokenManager {
	return signx.NewTokenManager(signx.NewKeyManager(&memoryKeyStore{}))
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tm := newTestTokenManager()

	expiration := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	token, err := tm.Generate(ctx, 42, expiration)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	data, err := tm.Parse(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), data.UserID)
	require.Equal(t, expiration.UnixMilli(), data.Expiration.UnixMilli())
}

func TestTokenDefaultExpiration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tm := newTestTokenManager()

	token, err := tm.Generate(ctx, 42, time.Time{})
	require.NoError(t, err)

	data, err := tm.Parse(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), data.UserID)

	want := time.Now().Add(signx.DefaultTokenLifetime)
	require.WithinDuration(t, want, data.Expiration, 5*time.Second)
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tm := newTestTokenManager()

	// Signature stays valid, only the embedded expiration is in the past.
	token, err := tm.Generate(ctx, 7, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = tm.Parse(ctx, token)
	require.ErrorIs(t, err, signx.ErrTokenExpired)
}

func TestTokenTamperEvidence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tm := newTestTokenManager()

	token, err := tm.Generate(ctx, 99, time.Now().Add(time.Hour))
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flip a single bit in the payload portion.
	mutated := append([]byte(nil), raw...)
	mutated[len(mutated)-1] ^= 0x01

	_, err = tm.Parse(ctx, base64.RawURLEncoding.EncodeToString(mutated))
	require.ErrorIs(t, err, signx.ErrInvalidSignature)
}

func TestTokenMalformedInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tm := newTestTokenManager()

	for _, token := range []string{"", "not base64!!", "AA", "////"} {
		_, err := tm.Parse(ctx, token)
		require.ErrorIs(t, err, signx.ErrInvalidSignature, "token %q", token)
	}
}
