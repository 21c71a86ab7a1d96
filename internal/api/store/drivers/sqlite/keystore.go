package sqlite

import (
	"context"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
)

type keystoreRepo struct {
	q dbtx
}

func (r *keystoreRepo) GetKeyPair(ctx context.Context) (domain.KeyPair, error) {
	row := r.q.QueryRowContext(ctx, `SELECT public_key, private_key FROM keystore WHERE id = 1`)

	var pair domain.KeyPair
	if err := row.Scan(&pair.PublicKey, &pair.PrivateKey); err != nil {
		return domain.KeyPair{}, mapNotFound(err)
	}
	return pair, nil
}

// SaveKeyPair is first-writer-wins: the single-row constraint plus INSERT OR
// IGNORE means concurrent first-time initializers converge on one pair.
func (r *keystoreRepo) SaveKeyPair(ctx context.Context, pair domain.KeyPair) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO keystore (id, public_key, private_key, created_at)
		VALUES (1, ?, ?, ?)`,
		pair.PublicKey, pair.PrivateKey, millis(time.Now()))
	return err
}
