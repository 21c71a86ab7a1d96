package domain

import "time"

// Audit actions recorded by the authentication flows.
const (
	AuditLogin       = "login"
	AuditFailedLogin = "failed_login"
	AuditLogout      = "logout"
)

// AuditEvent is a best-effort record of an authentication-related action.
// UserID is nil for events with no resolved account (failed logins).
type AuditEvent struct {
	ID         string
	UserID     *int64
	Action     string
	RemoteAddr string
	CreatedAt  time.Time
}
