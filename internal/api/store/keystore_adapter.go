package store

import (
	"context"
	"errors"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/pkg/signx"
)

// KeystoreAdapter bridges the Keystore repository to the signx.KeyStore
// interface, so pkg/signx stays free of store dependencies.
type KeystoreAdapter struct {
	Keystore Keystore
}

var _ signx.KeyStore = (*KeystoreAdapter)(nil)

func (a *KeystoreAdapter) LoadKeyPair(ctx context.Context) (signx.KeyPairRecord, error) {
	pair, err := a.Keystore.GetKeyPair(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return signx.KeyPairRecord{}, signx.ErrNoKeyPair
		}
		return signx.KeyPairRecord{}, err
	}
	return signx.KeyPairRecord{
		PublicKey:  pair.PublicKey,
		PrivateKey: pair.PrivateKey,
	}, nil
}

func (a *KeystoreAdapter) SaveKeyPair(ctx context.Context, pair signx.KeyPairRecord) error {
	return a.Keystore.SaveKeyPair(ctx, domain.KeyPair{
		PublicKey:  pair.PublicKey,
		PrivateKey: pair.PrivateKey,
	})
}
