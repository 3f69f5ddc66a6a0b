// Package identity attaches a principal to every request. Resolution walks a
// fixed chain (session cookie, trusted legacy header, guest) and never fails.
// It does not enforce access control; handlers that need a real user check
// Principal.IsGuest themselves.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/pkg/config"
	jwtpkg "github.com/splax/carebase/pkg/jwt"
)

const (
	// HeaderUserID carries a caller-supplied user id from pre-session clients.
	HeaderUserID = "X-User-ID"
	// HeaderInternalToken proves the request came from an internal service.
	HeaderInternalToken = "X-Internal-Token"

	defaultCookieName = "session"
)

// SessionValidator resolves session ids to principals.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*domain.Principal, error)
}

// UserLookup fetches users by id for the legacy header path.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Resolver derives the request principal.
type Resolver struct {
	sessions       SessionValidator
	users          UserLookup
	logger         *slog.Logger
	cookieName     string
	internalSecret string
}

// New constructs a Resolver. An empty INTERNAL_SERVICE_SECRET disables the
// legacy header path entirely.
func New(sessions SessionValidator, users UserLookup, logger *slog.Logger, cfg config.APIConfig) Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.TrimSpace(cfg.SessionCookieName)
	if name == "" {
		name = defaultCookieName
	}
	return Resolver{
		sessions:       sessions,
		users:          users,
		logger:         logger.With("component", "identity"),
		cookieName:     name,
		internalSecret: strings.TrimSpace(cfg.InternalServiceSecret),
	}
}

// CookieName returns the session cookie name the resolver reads.
func (r Resolver) CookieName() string {
	return r.cookieName
}

// Resolve returns the principal for req. Store failures are logged and the
// chain continues, so the worst case is the guest principal.
func (r Resolver) Resolve(req *http.Request) domain.Principal {
	ctx := req.Context()
	if p, ok := r.fromSession(ctx, req); ok {
		return p
	}
	if p, ok := r.fromHeader(ctx, req); ok {
		return p
	}
	p := domain.GuestPrincipal(domain.GuestUserID)
	p.Source = domain.SourceDefault
	return p
}

// SessionID returns the session cookie value, or "" when absent.
func (r Resolver) SessionID(req *http.Request) string {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func (r Resolver) fromSession(ctx context.Context, req *http.Request) (domain.Principal, bool) {
	id := r.SessionID(req)
	if id == "" || r.sessions == nil {
		return domain.Principal{}, false
	}
	p, err := r.sessions.Validate(ctx, id)
	if err != nil {
		r.logger.Warn("session validation failed", "error", err)
		return domain.Principal{}, false
	}
	if p == nil {
		return domain.Principal{}, false
	}
	out := *p
	out.Source = domain.SourceSession
	return out, true
}

func (r Resolver) fromHeader(ctx context.Context, req *http.Request) (domain.Principal, bool) {
	userID := strings.TrimSpace(req.Header.Get(HeaderUserID))
	if userID == "" {
		return domain.Principal{}, false
	}
	if !r.trusted(req) {
		r.logger.Warn("ignoring untrusted user id header", "path", req.URL.Path)
		return domain.Principal{}, false
	}
	if domain.IsGuestID(userID) {
		p := domain.GuestPrincipal(userID)
		p.Source = domain.SourceHeader
		return p, true
	}
	if r.users == nil {
		return domain.Principal{}, false
	}
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("header user lookup failed", "error", err)
		}
		return domain.Principal{}, false
	}
	p := domain.PrincipalFromUser(*user)
	p.Source = domain.SourceHeader
	return p, true
}

// trusted reports whether req carries a valid internal service token.
func (r Resolver) trusted(req *http.Request) bool {
	if r.internalSecret == "" {
		return false
	}
	token := strings.TrimSpace(req.Header.Get(HeaderInternalToken))
	if token == "" {
		return false
	}
	claims, err := jwtpkg.Parse(token, r.internalSecret)
	if err != nil {
		r.logger.Warn("internal token rejected", "error", err)
		return false
	}
	return claims.Service != ""
}

type contextKey string

const principalKey contextKey = "carebase-principal"

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}
