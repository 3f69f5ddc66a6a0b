package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
)

const defaultOpTimeout = 3 * time.Second

// querier is the subset of *pgxpool.Pool the repository uses. Each call
// acquires a pooled connection and releases it before returning (QueryRow
// releases on Scan, Query on Rows.Close).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	db      querier
	timeout time.Duration
}

// New constructs a Repository. timeout bounds every store operation.
func New(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return newRepository(pool, timeout)
}

func newRepository(db querier, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Repository{db: db, timeout: timeout}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.SessionRepository    = (*Repository)(nil)
	_ repository.NewsRepository       = (*Repository)(nil)
	_ repository.MedicationRepository = (*Repository)(nil)
)

// Ping checks database reachability.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return translate("ping", r.db.Ping(ctx))
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO users (id, email, name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.CreatedAt.UTC())
	return translate("create user", err)
}

// GetUserByEmail fetches a registered user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE email = $1 AND role = 'user'`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return scanUser("get user by email", r.db.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE id = $1`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return scanUser("get user by id", r.db.QueryRow(ctx, query, id))
}

func scanUser(op string, row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *Repository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// translate maps driver errors onto repository sentinels so callers never
// inspect pgx types. Timeouts and connection failures are ErrUnavailable.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("postgres %s: %w", op, repository.ErrConflict)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"), strings.HasPrefix(pgErr.Code, "57"):
			return fmt.Errorf("postgres %s: %w: %w", op, repository.ErrUnavailable, err)
		}
		return fmt.Errorf("postgres %s: %w", op, err)
	}
	if unavailable(err) {
		return fmt.Errorf("postgres %s: %w: %w", op, repository.ErrUnavailable, err)
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}

func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
