package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/pkg/config"
	jwtpkg "github.com/splax/carebase/pkg/jwt"
)

const testSecret = "internal-secret"

func TestResolveSessionCookie(t *testing.T) {
	validator := validatorMock{
		validateFunc: func(_ context.Context, id string) (*domain.Principal, error) {
			if id != "tok" {
				t.Fatalf("unexpected session id %q", id)
			}
			return &domain.Principal{UserID: "u1", Email: "a@x.com", Role: domain.RoleUser}, nil
		},
	}
	r := New(validator, nil, newLogger(), config.APIConfig{})
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})

	p := r.Resolve(req)
	if p.UserID != "u1" || p.Source != domain.SourceSession {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestResolveFallsBackToGuest(t *testing.T) {
	validator := validatorMock{
		validateFunc: func(context.Context, string) (*domain.Principal, error) { return nil, nil },
	}
	r := New(validator, nil, newLogger(), config.APIConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "expired"})

	p := r.Resolve(req)
	if !p.IsGuest() || p.UserID != domain.GuestUserID || p.Source != domain.SourceDefault {
		t.Fatalf("expected default guest, got %+v", p)
	}
}

func TestResolveStoreFailureStillYieldsPrincipal(t *testing.T) {
	validator := validatorMock{
		validateFunc: func(context.Context, string) (*domain.Principal, error) {
			return nil, errors.New("store unavailable")
		},
	}
	r := New(validator, nil, newLogger(), config.APIConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})
	if p := r.Resolve(req); !p.IsGuest() {
		t.Fatalf("expected guest on store failure, got %+v", p)
	}
}

func TestResolveIgnoresUntrustedHeader(t *testing.T) {
	users := usersMock{
		getFunc: func(context.Context, string) (*domain.User, error) {
			t.Fatalf("untrusted header must not trigger a lookup")
			return nil, nil
		},
	}
	cases := map[string]struct {
		secret string
		token  string
	}{
		"no secret configured": {secret: "", token: mustToken(t, testSecret)},
		"missing token":        {secret: testSecret, token: ""},
		"wrong signature":      {secret: testSecret, token: mustToken(t, "other-secret")},
		"garbage token":        {secret: testSecret, token: "not-a-jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := New(nil, users, newLogger(), config.APIConfig{InternalServiceSecret: tc.secret})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderUserID, "u1")
			if tc.token != "" {
				req.Header.Set(HeaderInternalToken, tc.token)
			}
			if p := r.Resolve(req); !p.IsGuest() {
				t.Fatalf("expected guest, got %+v", p)
			}
		})
	}
}

func TestResolveTrustedHeader(t *testing.T) {
	users := usersMock{
		getFunc: func(_ context.Context, id string) (*domain.User, error) {
			if id != "u1" {
				return nil, repository.ErrNotFound
			}
			return &domain.User{ID: "u1", Email: "a@x.com", Name: "A", Role: domain.RoleUser}, nil
		},
	}
	r := New(nil, users, newLogger(), config.APIConfig{InternalServiceSecret: testSecret})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderInternalToken, mustToken(t, testSecret))

	p := r.Resolve(req)
	if p.UserID != "u1" || p.IsGuest() || p.Source != domain.SourceHeader {
		t.Fatalf("unexpected principal: %+v", p)
	}

	req.Header.Set(HeaderUserID, "ghost")
	if p := r.Resolve(req); !p.IsGuest() || p.Source != domain.SourceDefault {
		t.Fatalf("unknown header user must fall through to guest, got %+v", p)
	}
}

func TestSessionTakesPrecedenceOverHeader(t *testing.T) {
	validator := validatorMock{
		validateFunc: func(context.Context, string) (*domain.Principal, error) {
			return &domain.Principal{UserID: "from-session", Role: domain.RoleUser}, nil
		},
	}
	users := usersMock{
		getFunc: func(context.Context, string) (*domain.User, error) {
			t.Fatalf("header lookup must not run when the session resolves")
			return nil, nil
		},
	}
	r := New(validator, users, newLogger(), config.APIConfig{InternalServiceSecret: testSecret})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})
	req.Header.Set(HeaderUserID, "from-header")
	req.Header.Set(HeaderInternalToken, mustToken(t, testSecret))
	if p := r.Resolve(req); p.UserID != "from-session" {
		t.Fatalf("expected session principal, got %+v", p)
	}
}

func TestCustomCookieName(t *testing.T) {
	r := New(nil, nil, newLogger(), config.APIConfig{SessionCookieName: "sid"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: " abc "})
	if got := r.SessionID(req); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if r.CookieName() != "sid" {
		t.Fatalf("unexpected cookie name %q", r.CookieName())
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no principal on empty context")
	}
	ctx := WithPrincipal(context.Background(), domain.GuestPrincipal(""))
	p, ok := FromContext(ctx)
	if !ok || p.UserID != domain.GuestUserID {
		t.Fatalf("unexpected principal: %+v %v", p, ok)
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	tok, err := jwtpkg.GenerateServiceToken("reports", secret, time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type validatorMock struct {
	validateFunc func(context.Context, string) (*domain.Principal, error)
}

func (m validatorMock) Validate(ctx context.Context, id string) (*domain.Principal, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, id)
	}
	return nil, nil
}

type usersMock struct {
	getFunc func(context.Context, string) (*domain.User, error)
}

func (m usersMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}
