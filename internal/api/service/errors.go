package service

import (
	"errors"

	"github.com/geofleet/geofleet/pkg/signx"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountExpired     = errors.New("account expired")
	ErrCodeRequired       = errors.New("one-time code required")
	ErrCodeInvalid        = errors.New("one-time code invalid")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrPasswordRequired   = errors.New("password must not be empty")

	// ErrUnsupportedScheme indicates a misconfigured client or proxy, not a
	// bad credential. It is never silently downgraded.
	ErrUnsupportedScheme = errors.New("unsupported authorization scheme")
)

// IsRejection reports whether err is an ordinary rejected-authentication
// outcome that the request boundary turns into an unauthorized response.
// ErrUnknownAccount is a rejection too: it must never reach a client in a
// form distinguishable from wrong credentials.
func IsRejection(err error) bool {
	for _, rejection := range []error{
		ErrInvalidCredentials,
		ErrAccountDisabled,
		ErrAccountExpired,
		ErrCodeRequired,
		ErrCodeInvalid,
		ErrUnknownAccount,
		signx.ErrTokenExpired,
		signx.ErrInvalidSignature,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
