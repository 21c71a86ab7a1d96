package domain

import "time"

// ServiceAccountID identifies the synthetic service-account principal. It
// sits far above any id the users table will ever assign.
const ServiceAccountID int64 = 9000000000000000000

// Principal is a successfully authenticated actor. It is attached to a
// single request and discarded with it.
type Principal struct {
	UserID         int64
	Administrator  bool
	ServiceAccount bool
	Expiration     *time.Time
}

// ServiceAccountUser returns the fixed, always-enabled administrator account
// backing the pre-shared service-account token. It never touches storage.
func ServiceAccountUser() User {
	return User{
		ID:            ServiceAccountID,
		Name:          "Service Account",
		Email:         "none",
		Administrator: true,
	}
}
