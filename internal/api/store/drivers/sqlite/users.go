package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, name, email, COALESCE(login, ''), hashed_password, salt,
	administrator, disabled, expiration_time, totp_key, fixed_email, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		expiration sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Login, &u.HashedPassword, &u.Salt,
		&u.Administrator, &u.Disabled, &expiration, &u.TOTPKey, &u.FixedEmail,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.ExpirationTime = fromMillisPtr(expiration)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmailOrLogin(ctx context.Context, identifier string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR login = ?`,
		identifier, identifier)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	now := millis(time.Now())
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO users (name, email, login, hashed_password, salt,
			administrator, disabled, expiration_time, totp_key, fixed_email,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, nullString(u.Login), u.HashedPassword, u.Salt,
		u.Administrator, u.Disabled, millisPtr(u.ExpirationTime), u.TOTPKey,
		u.FixedEmail, now, now,
	)
	if err != nil {
		return 0, mapConflict(err)
	}
	return res.LastInsertId()
}

func (r *usersRepo) UpdateUserPassword(ctx context.Context, id int64, hash, salt string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET hashed_password = ?, salt = ?, updated_at = ? WHERE id = ?`,
		hash, salt, millis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateUserTOTPKey(ctx context.Context, id int64, key string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET totp_key = ?, updated_at = ? WHERE id = ?`,
		key, millis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) SetUserDisabled(ctx context.Context, id int64, disabled bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET disabled = ?, updated_at = ? WHERE id = ?`,
		disabled, millis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
