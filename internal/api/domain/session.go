package domain

import "time"

// Session is a server-side session reference. The expiration, when set,
// caps how long tokens issued from this session may live.
type Session struct {
	ID         string
	UserID     int64
	Expiration *time.Time
	CreatedAt  time.Time
}
