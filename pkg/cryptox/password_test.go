package cryptox_test

import (
	"testing"

	"github.com/geofleet/geofleet/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	hash, salt, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	require.Len(t, hash, 48) // 24 bytes hex encoded
	require.Len(t, salt, 48)

	require.True(t, cryptox.VerifyPassword("secret", hash, salt))
	require.False(t, cryptox.VerifyPassword("wrong", hash, salt))
}

func TestHashPasswordFreshSaltPerCall(t *testing.T) {
	t.Parallel()

	hash1, salt1, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	hash2, salt2, err := cryptox.HashPassword("secret")
	require.NoError(t, err)

	require.NotEqual(t, salt1, salt2)
	require.NotEqual(t, hash1, hash2)

	// Each record still verifies against the original password.
	require.True(t, cryptox.VerifyPassword("secret", hash1, salt1))
	require.True(t, cryptox.VerifyPassword("secret", hash2, salt2))
}

func TestVerifyPasswordDifferences(t *testing.T) {
	t.Parallel()

	hash, salt, err := cryptox.HashPassword("abcdefgh")
	require.NoError(t, err)

	// Differences at the first byte, the last byte and in length must all be
	// rejected; the comparison never short-circuits into a false positive.
	for _, password := range []string{"Xbcdefgh", "abcdefgX", "abcdefg", "abcdefghi", ""} {
		require.False(t, cryptox.VerifyPassword(password, hash, salt), "password %q", password)
	}
	require.True(t, cryptox.VerifyPassword("abcdefgh", hash, salt))
}

func TestVerifyPasswordMalformedRecord(t *testing.T) {
	t.Parallel()

	require.False(t, cryptox.VerifyPassword("secret", "not-hex", "also-not-hex"))
	require.False(t, cryptox.VerifyPassword("secret", "", ""))
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, token, 43) // 32 bytes base64url, no padding

	other, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
}
