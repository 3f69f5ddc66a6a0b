package domain

import "time"

// Roles a principal can hold. A user's role never changes after creation.
const (
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
