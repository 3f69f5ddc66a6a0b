// Package memory provides an in-process implementation of the repository
// interfaces for local development and tests. It mirrors the constraints the
// PostgreSQL schema enforces: unique user email and unique session id.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
)

// Store keeps all records in maps guarded by a single mutex.
type Store struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	byEmail   map[string]string
	sessions  map[string]domain.Session
	news      map[string]domain.NewsItem
	reminders map[string]domain.MedicationReminder
}

var (
	_ repository.UserRepository       = (*Store)(nil)
	_ repository.SessionRepository    = (*Store)(nil)
	_ repository.NewsRepository       = (*Store)(nil)
	_ repository.MedicationRepository = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		byEmail:   make(map[string]string),
		sessions:  make(map[string]domain.Session),
		news:      make(map[string]domain.NewsItem),
		reminders: make(map[string]domain.MedicationReminder),
	}
}

// CreateUser inserts a user, failing with ErrConflict on a duplicate id or email.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return repository.ErrUnavailable
	}
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return repository.ErrConflict
	}
	if user.Role != domain.RoleGuest {
		if _, taken := s.byEmail[user.Email]; taken {
			return repository.ErrConflict
		}
		s.byEmail[user.Email] = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return nil
}

// GetUserByEmail fetches a registered user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// CreateSession stores a session row.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return repository.ErrUnavailable
	}
	if session == nil || session.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return repository.ErrConflict
	}
	s.sessions[session.ID] = *session
	return nil
}

// GetSession returns the session while it has not expired at now.
func (s *Store) GetSession(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.Valid(now) {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

// DeleteSession removes a session if present.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return repository.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// SessionCount reports stored sessions, expired ones included.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UserCount reports stored users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// UpsertNews stores items keyed by URL and reports how many were new.
func (s *Store) UpsertNews(ctx context.Context, items []domain.NewsItem) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, repository.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, item := range items {
		if _, exists := s.news[item.URL]; !exists {
			inserted++
		}
		s.news[item.URL] = item
	}
	return inserted, nil
}

// News returns stored headlines ordered by publication time, newest first.
func (s *Store) News() []domain.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NewsItem, 0, len(s.news))
	for _, item := range s.news {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

// PutReminder inserts or replaces a reminder.
func (s *Store) PutReminder(reminder domain.MedicationReminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[reminder.ID] = reminder
}

// Reminder returns a stored reminder by id.
func (s *Store) Reminder(id string) (domain.MedicationReminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	return r, ok
}

// ListActiveReminders returns active reminders ordered by id.
func (s *Store) ListActiveReminders(ctx context.Context) ([]domain.MedicationReminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MedicationReminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkReminderNotified records the delivery time of a reminder.
func (s *Store) MarkReminderNotified(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return repository.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return repository.ErrNotFound
	}
	ts := at.UTC()
	r.LastNotifiedAt = &ts
	s.reminders[id] = r
	return nil
}
