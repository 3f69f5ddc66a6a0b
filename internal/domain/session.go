package domain

import "time"

// Session is a persisted, time-bounded login. Sessions are never extended;
// they are created once and later deleted or left to expire.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
