package domain

import (
	"time"

	"github.com/geofleet/geofleet/pkg/cryptox"
)

// User is a locally stored account. Password material is a paired PBKDF2
// hash and salt, both hex encoded; plaintext passwords are never persisted.
type User struct {
	ID             int64
	Name           string
	Email          string
	Login          string // alternate login identifier, empty when unset
	HashedPassword string
	Salt           string
	Administrator  bool
	Disabled       bool
	ExpirationTime *time.Time
	TOTPKey        string // base32 TOTP secret, empty when no second factor is provisioned
	FixedEmail     bool   // email managed by an external identity provider
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetPassword replaces the stored hash and salt together. Callers must
// reject empty passwords before getting here.
func (u *User) SetPassword(password string) error {
	hash, salt, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	u.HashedPassword = hash
	u.Salt = salt
	return nil
}

// PasswordValid verifies a candidate password against the stored record.
func (u *User) PasswordValid(password string) bool {
	return cryptox.VerifyPassword(password, u.HashedPassword, u.Salt)
}
