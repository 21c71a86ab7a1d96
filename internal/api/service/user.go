package service

import (
	"context"
	"strings"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/pquerna/otp/totp"
)

// UserService covers account administration: creating accounts and changing
// passwords. Credential material never leaves this layer unhashed.
type UserService struct {
	Store store.Store
}

// CreateUser creates an account with the given password. An empty password
// is rejected before any hashing happens.
func (s *UserService) CreateUser(ctx context.Context, user domain.User, password string) (domain.User, error) {
	if strings.TrimSpace(password) == "" {
		return domain.User{}, ErrPasswordRequired
	}
	if err := user.SetPassword(password); err != nil {
		return domain.User{}, err
	}

	id, err := s.Store.Users().CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id
	return user, nil
}

// SetPassword replaces the password of an existing account. Hash and salt
// are always written together.
func (s *UserService) SetPassword(ctx context.Context, userID int64, password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrPasswordRequired
	}

	var user domain.User
	if err := user.SetPassword(password); err != nil {
		return err
	}
	return s.Store.Users().UpdateUserPassword(ctx, userID, user.HashedPassword, user.Salt)
}

// GetUser returns the account with the given id.
func (s *UserService) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// GenerateTOTPKey produces a fresh second-factor secret for the account.
// The secret is returned to the caller for enrollment but not stored until
// SetTOTPKey confirms it.
func (s *UserService) GenerateTOTPKey(ctx context.Context, userID int64) (string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "geofleet",
		AccountName: user.Email,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// SetTOTPKey provisions the account's second-factor secret. An empty key
// clears it, disabling the second factor.
func (s *UserService) SetTOTPKey(ctx context.Context, userID int64, key string) error {
	if key != "" {
		// Reject secrets the validator could never accept.
		if _, err := totp.GenerateCode(key, time.Now()); err != nil {
			return ErrCodeInvalid
		}
	}
	return s.Store.Users().UpdateUserTOTPKey(ctx, userID, key)
}
