package signx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/stretchr/testify/require"
)

// memoryKeyStore is a first-writer-wins in-memory KeyStore.
type memoryKeyStore struct {
	mu     sync.Mutex
	record signx.KeyPairRecord
	stored bool
	saves  int
}

func (s *memoryKeyStore) LoadKeyPair(_ context.Context) (signx.KeyPairRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stored {
		return signx.KeyPairRecord{}, signx.ErrNoKeyPair
	}
	return s.record, nil
}

func (s *memoryKeyStore) SaveKeyPair(_ context.Context, pair signx.KeyPairRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.stored {
		return nil
	}
	s.record = pair
	s.stored = true
	return nil
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	km := signx.NewKeyManager(&memoryKeyStore{})

	data := []byte("device position report")
	framed, err := km.Sign(ctx, data)
	require.NoError(t, err)

	// Framing: one length byte, then the signature, then the original data.
	sigLen := int(framed[0])
	require.Greater(t, sigLen, 0)
	require.Equal(t, data, framed[1+sigLen:])

	got, err := km.Verify(ctx, framed)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	km := signx.NewKeyManager(&memoryKeyStore{})

	framed, err := km.Sign(ctx, []byte("payload"))
	require.NoError(t, err)

	t.Run("flipped data byte", func(t *testing.T) {
		mutated := append([]byte(nil), framed...)
		mutated[len(mutated)-1] ^= 0x01
		_, err := km.Verify(ctx, mutated)
		require.ErrorIs(t, err, signx.ErrInvalidSignature)
	})

	t.Run("flipped signature byte", func(t *testing.T) {
		mutated := append([]byte(nil), framed...)
		mutated[2] ^= 0x01
		_, err := km.Verify(ctx, mutated)
		require.ErrorIs(t, err, signx.ErrInvalidSignature)
	})

	t.Run("truncated input", func(t *testing.T) {
		_, err := km.Verify(ctx, framed[:int(framed[0])/2])
		require.ErrorIs(t, err, signx.ErrInvalidSignature)
	})

	t.Run("length byte exceeding input", func(t *testing.T) {
		mutated := append([]byte(nil), framed...)
		mutated[0] = 0xFF
		_, err := km.Verify(ctx, mutated[:64])
		require.ErrorIs(t, err, signx.ErrInvalidSignature)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := km.Verify(ctx, nil)
		require.ErrorIs(t, err, signx.ErrInvalidSignature)
	})
}

func TestKeyPairPersistsAcrossManagers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memoryKeyStore{}

	first := signx.NewKeyManager(store)
	framed, err := first.Sign(ctx, []byte("signed by first instance"))
	require.NoError(t, err)

	// A second manager over the same store must load the persisted pair
	// rather than regenerate, so it can verify the first one's signatures.
	second := signx.NewKeyManager(store)
	got, err := second.Verify(ctx, framed)
	require.NoError(t, err)
	require.Equal(t, []byte("signed by first instance"), got)
	require.Equal(t, 1, store.saves)
}

func TestConcurrentInitializationGeneratesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memoryKeyStore{}
	km := signx.NewKeyManager(store)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := km.Sign(ctx, []byte("concurrent"))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, store.saves)
}
