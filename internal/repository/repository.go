package repository

import (
	"context"
	"time"

	"github.com/splax/carebase/internal/domain"
)

// UserRepository persists users and their password hashes.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	// GetSession returns the session only while now is before its expiry;
	// expired and missing sessions both yield ErrNotFound.
	GetSession(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	// DeleteSession removes the session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, id string) error
}

// NewsRepository stores fetched health headlines.
type NewsRepository interface {
	UpsertNews(ctx context.Context, items []domain.NewsItem) (int, error)
}

// MedicationRepository reads reminders and records deliveries.
type MedicationRepository interface {
	ListActiveReminders(ctx context.Context) ([]domain.MedicationReminder, error)
	MarkReminderNotified(ctx context.Context, id string, at time.Time) error
}
