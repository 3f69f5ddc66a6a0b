package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/pkg/config"
	"github.com/splax/carebase/pkg/crypto"
)

// DefaultSessionTTL is the absolute lifetime of a session. Sessions are not
// renewed on use.
const DefaultSessionTTL = 7 * 24 * time.Hour

const sessionTokenAttempts = 3

var (
	ErrValidation         = errors.New("auth: email and password are required")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrConflict           = errors.New("auth: email already registered")
	ErrStoreUnavailable   = errors.New("auth: store unavailable")

	// ErrPasswordTooLong is a validation failure with its own client message.
	ErrPasswordTooLong = fmt.Errorf("%w: password is longer than 72 bytes", ErrValidation)
)

const maxPasswordBytes = 72

// PasswordHasher hashes and verifies secrets.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	SessionID string
	Principal domain.Principal
	ExpiresAt time.Time
	Created   bool
}

// Service handles authentication workflows.
type Service struct {
	users          repository.UserRepository
	sessions       repository.SessionRepository
	hasher         PasswordHasher
	logger         *slog.Logger
	ttl            time.Duration
	guestIsolation bool
	now            func() time.Time
	newToken       func() (string, error)
}

// New constructs a Service. A nil hasher selects bcrypt at the default cost.
func New(users repository.UserRepository, sessions repository.SessionRepository, hasher PasswordHasher, logger *slog.Logger, cfg config.APIConfig) Service {
	if hasher == nil {
		hasher = crypto.Bcrypt{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return Service{
		users:          users,
		sessions:       sessions,
		hasher:         hasher,
		logger:         logger.With("component", "auth"),
		ttl:            ttl,
		guestIsolation: cfg.GuestIsolation,
		now:            func() time.Time { return time.Now().UTC() },
		newToken:       randomSessionToken,
	}
}

// SessionTTL reports the lifetime given to new sessions.
func (s Service) SessionTTL() time.Duration {
	return s.ttl
}

// Login authenticates email and password. When the email is unknown and a
// name is supplied the user is registered first.
func (s Service) Login(ctx context.Context, email, password, name string) (*LoginResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" {
		return nil, ErrValidation
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	created := false
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !s.hasher.Verify(password, user.PasswordHash) {
			s.logger.Info("login rejected", "reason", "password mismatch")
			return nil, ErrInvalidCredentials
		}
	case errors.Is(err, repository.ErrNotFound):
		if name == "" {
			return nil, ErrUserNotFound
		}
		user, err = s.register(ctx, email, password, name)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, s.storeError("lookup user", err)
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID, "registered", created)
	return &LoginResult{
		SessionID: session.ID,
		Principal: domain.PrincipalFromUser(*user),
		ExpiresAt: session.ExpiresAt,
		Created:   created,
	}, nil
}

func (s Service) register(ctx context.Context, email, password, name string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, s.storeError("create user", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// LoginAsGuest opens a session for the guest identity. The credential store
// is never consulted.
func (s Service) LoginAsGuest(ctx context.Context) (*LoginResult, error) {
	guestID := domain.GuestUserID
	if s.guestIsolation {
		guestID = "guest-" + uuid.NewString()
	}
	session, err := s.openSession(ctx, guestID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("guest logged in", "user_id", guestID)
	return &LoginResult{
		SessionID: session.ID,
		Principal: domain.GuestPrincipal(guestID),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Validate resolves a session id to its principal. A missing, expired or
// orphaned session yields (nil, nil); only store failures are errors.
func (s Service) Validate(ctx context.Context, sessionID string) (*domain.Principal, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	now := s.now()
	session, err := s.sessions.GetSession(ctx, sessionID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, s.storeError("lookup session", err)
	}
	if !session.Valid(now) {
		return nil, nil
	}
	if domain.IsGuestID(session.UserID) {
		p := domain.GuestPrincipal(session.UserID)
		p.SessionID = session.ID
		return &p, nil
	}
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("session references missing user", "user_id", session.UserID)
			return nil, nil
		}
		return nil, s.storeError("lookup session user", err)
	}
	p := domain.PrincipalFromUser(*user)
	p.SessionID = session.ID
	return &p, nil
}

// Logout deletes the session. Unknown ids are a no-op.
func (s Service) Logout(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return s.storeError("delete session", err)
	}
	return nil
}

func (s Service) openSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now()
	var lastErr error
	for attempt := 0; attempt < sessionTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, err
		}
		session := &domain.Session{
			ID:        token,
			UserID:    userID,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}
		err = s.sessions.CreateSession(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.storeError("create session", err)
		}
		lastErr = err
	}
	return nil, s.storeError("create session", lastErr)
}

// storeError hides the driver error behind ErrStoreUnavailable after logging it.
func (s Service) storeError(op string, err error) error {
	s.logger.Error("store operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
