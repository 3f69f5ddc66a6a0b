package domain

import "strings"

// Guest identity constants. Guests are never stored in the users table.
const (
	GuestUserID      = "guest-user"
	GuestEmail       = "guest@example.com"
	GuestName        = "Guest User"
	guestIsolatedPfx = "guest-"
)

// Source records which step of identity resolution produced a principal.
type Source string

const (
	SourceSession Source = "session"
	SourceHeader  Source = "header"
	SourceDefault Source = "default"
)

// Principal is the identity attached to a single request.
type Principal struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	SessionID string `json:"-"`
	Source    Source `json:"-"`
}

// IsGuest reports whether the principal is unauthenticated.
func (p Principal) IsGuest() bool {
	return p.Role == RoleGuest
}

// PrincipalFromUser converts a stored user into a principal.
func PrincipalFromUser(u User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// GuestPrincipal returns the synthetic principal for a guest id.
func GuestPrincipal(id string) Principal {
	if strings.TrimSpace(id) == "" {
		id = GuestUserID
	}
	return Principal{UserID: id, Email: GuestEmail, Name: GuestName, Role: RoleGuest}
}

// IsGuestID reports whether id names the shared guest or an isolated guest.
func IsGuestID(id string) bool {
	return id == GuestUserID || strings.HasPrefix(id, guestIsolatedPfx)
}
