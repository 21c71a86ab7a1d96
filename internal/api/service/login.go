package service

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/pquerna/otp/totp"
)

// DirectoryProvider delegates credential checks to an external directory
// service. Bind reports whether the identifier/secret pair is accepted;
// FetchAccount returns directory attributes mapped onto a local account for
// auto-provisioning. Implementations own their own timeouts.
type DirectoryProvider interface {
	Bind(ctx context.Context, identifier, secret string) (bool, error)
	FetchAccount(ctx context.Context, identifier string) (domain.User, error)
}

// LoginResult is a successful authentication. Expiration is set only for
// token logins, carrying the token's own expiration into the session.
type LoginResult struct {
	User       domain.User
	Expiration *time.Time
}

// Principal converts the result into the request-scoped principal handed to
// downstream authorization.
func (r *LoginResult) Principal() domain.Principal {
	return domain.Principal{
		UserID:         r.User.ID,
		Administrator:  r.User.Administrator,
		ServiceAccount: r.User.ID == domain.ServiceAccountID,
		Expiration:     r.Expiration,
	}
}

// LoginService resolves credentials of every supported scheme to a principal.
// A nil result with nil error means credential mismatch: the caller turns it
// into an invalid-credentials denial, never a system error.
type LoginService struct {
	Store     store.Store
	Tokens    *signx.TokenManager
	Directory DirectoryProvider // optional

	// ServiceAccountToken, when non-empty, authenticates to the fixed
	// privileged principal without touching storage.
	ServiceAccountToken string

	// ForceDirectory disables local password verification; only directory
	// binds can satisfy password login.
	ForceDirectory bool

	// ForceRedirect disables password login entirely; only redirect-based
	// flows succeed.
	ForceRedirect bool
}

// LoginWithScheme dispatches an Authorization header already split into
// scheme and credentials.
func (s *LoginService) LoginWithScheme(ctx context.Context, scheme, credentials string) (*LoginResult, error) {
	switch strings.ToLower(scheme) {
	case "bearer":
		return s.LoginWithToken(ctx, credentials)
	case "basic":
		decoded, err := base64.StdEncoding.DecodeString(credentials)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		identifier, secret, _ := strings.Cut(string(decoded), ":")
		return s.LoginWithPassword(ctx, identifier, secret, "")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// LoginWithToken authenticates a bearer token. The configured service
// account token short-circuits to the synthetic administrator principal.
func (s *LoginService) LoginWithToken(ctx context.Context, token string) (*LoginResult, error) {
	if s.ServiceAccountToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(s.ServiceAccountToken)) == 1 {
		return &LoginResult{User: domain.ServiceAccountUser()}, nil
	}

	data, err := s.Tokens.Parse(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if err := checkEnabled(user); err != nil {
		return nil, err
	}

	expiration := data.Expiration
	return &LoginResult{User: user, Expiration: &expiration}, nil
}

// LoginWithPassword authenticates an identifier/password pair, with an
// optional one-time code. The identifier matches either the email or the
// alternate login of an account. An empty code means no code was supplied.
func (s *LoginService) LoginWithPassword(ctx context.Context, identifier, password, code string) (*LoginResult, error) {
	if s.ForceRedirect {
		return nil, nil
	}

	identifier = strings.TrimSpace(identifier)

	user, err := s.Store.Users().GetUserByEmailOrLogin(ctx, identifier)
	switch {
	case err == nil:
		authenticated := false
		if s.Directory != nil && user.Login != "" {
			ok, bindErr := s.Directory.Bind(ctx, user.Login, password)
			if bindErr != nil {
				return nil, fmt.Errorf("directory bind: %w", bindErr)
			}
			authenticated = ok
		}
		if !authenticated && !s.ForceDirectory {
			authenticated = user.PasswordValid(password)
		}
		if !authenticated {
			return nil, nil
		}
		if err := checkCode(user, code); err != nil {
			return nil, err
		}
		if err := checkEnabled(user); err != nil {
			return nil, err
		}
		return &LoginResult{User: user}, nil

	case errors.Is(err, store.ErrNotFound):
		if s.Directory == nil {
			return nil, nil
		}
		return s.provisionFromDirectory(ctx, identifier, password)

	default:
		return nil, err
	}
}

// provisionFromDirectory handles the first login of an identity known only
// to the directory: bind with the supplied credentials and, on success,
// create a local account from directory attributes.
func (s *LoginService) provisionFromDirectory(ctx context.Context, identifier, password string) (*LoginResult, error) {
	ok, err := s.Directory.Bind(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("directory bind: %w", err)
	}
	if !ok {
		return nil, nil
	}

	user, err := s.Directory.FetchAccount(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("directory account fetch: %w", err)
	}

	id, err := s.Store.Users().CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// A concurrent first login won the insert; use its account.
			user, err = s.Store.Users().GetUserByEmailOrLogin(ctx, identifier)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	} else {
		user.ID = id
	}

	if err := checkEnabled(user); err != nil {
		return nil, err
	}
	return &LoginResult{User: user}, nil
}

// LoginWithSession resolves a stored session id to a principal. A missing
// or expired session surfaces as ErrUnknownAccount so the boundary treats
// it like any other rejected credential.
func (s *LoginService) LoginWithSession(ctx context.Context, sessionID string) (*LoginResult, error) {
	session, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if err := checkEnabled(user); err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Expiration: session.Expiration}, nil
}

// LoginTrusted gets or creates an account by email without any password
// check. It backs externally-authenticated flows such as the redirect-based
// sign-in completion, and is idempotent.
func (s *LoginService) LoginTrusted(ctx context.Context, email, name string, administrator bool) (*LoginResult, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user = domain.User{
			Name:          name,
			Email:         email,
			FixedEmail:    true,
			Administrator: administrator,
		}
		id, createErr := s.Store.Users().CreateUser(ctx, user)
		if createErr != nil {
			if !errors.Is(createErr, store.ErrAlreadyExists) {
				return nil, createErr
			}
			// Lost a create-if-absent race; the existing account wins.
			user, err = s.Store.Users().GetUserByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
		} else {
			user.ID = id
		}
	} else if err != nil {
		return nil, err
	}

	if err := checkEnabled(user); err != nil {
		return nil, err
	}
	return &LoginResult{User: user}, nil
}

// checkEnabled enforces the account-enabled invariant: no principal is ever
// produced for a disabled or expired account.
func checkEnabled(u domain.User) error {
	if u.Disabled {
		return ErrAccountDisabled
	}
	if u.ExpirationTime != nil && u.ExpirationTime.Before(time.Now()) {
		return ErrAccountExpired
	}
	return nil
}

// checkCode enforces the second factor when the account has a provisioned
// TOTP secret; accounts without one skip the check entirely.
func checkCode(u domain.User, code string) error {
	if u.TOTPKey == "" {
		return nil
	}
	if code == "" {
		return ErrCodeRequired
	}
	if !totp.Validate(code, u.TOTPKey) {
		return ErrCodeInvalid
	}
	return nil
}
