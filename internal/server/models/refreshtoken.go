package models

import "time"

// RefreshToken is one row of the rotating refresh-token table. A token is
// single-use: redeeming it deletes the row and issues a fresh pair.
type RefreshToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at time now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
