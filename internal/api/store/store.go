package store

import (
	"context"
	"errors"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Sessions() Sessions
	Keystore() Keystore
	AuditLog() AuditLog
	UsageStats() UsageStats

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. This is the recommended way to handle
	// multi-step operations that must be atomic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// GetUserByEmailOrLogin matches the identifier against both the email
	// and the alternate login column.
	GetUserByEmailOrLogin(ctx context.Context, identifier string) (domain.User, error)

	// GetUserByEmail matches by email only; used by trusted provisioning.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user and returns the assigned id. The email
	// uniqueness constraint makes concurrent create-if-absent flows safe:
	// the loser gets ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) (int64, error)

	// UpdateUserPassword writes hash and salt together; one is never
	// stored without the other.
	UpdateUserPassword(ctx context.Context, id int64, hash, salt string) error

	// UpdateUserTOTPKey provisions or clears the second-factor secret.
	UpdateUserTOTPKey(ctx context.Context, id int64, key string) error

	// SetUserDisabled toggles the account's disabled flag.
	SetUserDisabled(ctx context.Context, id int64, disabled bool) error

	// CountUsers returns the total number of accounts.
	CountUsers(ctx context.Context) (int64, error)
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a session by id; expired sessions are not returned.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// DeleteSession invalidates a session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type Keystore interface {
	// GetKeyPair returns the deployment's single key pair, or ErrNotFound
	// when none has been persisted yet.
	GetKeyPair(ctx context.Context) (domain.KeyPair, error)

	// SaveKeyPair persists a pair. First writer wins: when a pair already
	// exists the call is a no-op, so concurrent initializers converge.
	SaveKeyPair(ctx context.Context, pair domain.KeyPair) error
}

type AuditLog interface {
	// InsertEvent records an audit event.
	InsertEvent(ctx context.Context, e domain.AuditEvent) error

	// DeleteEventsBefore prunes old events (housekeeping).
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) error
}

type UsageStats interface {
	// AddRequests increments the per-day request counter for a user.
	AddRequests(ctx context.Context, day string, userID int64, n int64) error

	// GetRequests returns the counter for a day, zero when absent.
	GetRequests(ctx context.Context, day string, userID int64) (int64, error)
}
