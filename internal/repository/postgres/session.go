package postgres

import (
	"context"
	"time"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
)

const (
	sessionInsert = `INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	sessionSelectLive = `SELECT id, user_id, expires_at, created_at
		FROM sessions WHERE id = $1 AND expires_at > $2`
	sessionDelete = `DELETE FROM sessions WHERE id = $1`
)

// CreateSession persists a new session row.
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return repository.ErrInvalidArgument
	}
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, sessionInsert, session.ID, session.UserID, session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	return translate("create session", err)
}

// GetSession returns a session that is still live at now.
func (r *Repository) GetSession(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	var s domain.Session
	row := r.db.QueryRow(ctx, sessionSelectLive, id, now.UTC())
	if err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, translate("get session", err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// DeleteSession removes a session; zero affected rows is not an error.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, sessionDelete, id)
	return translate("delete session", err)
}
