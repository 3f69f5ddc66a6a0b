package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginReturnsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Email != "a@x.com" || body.Password != "p" {
			t.Fatalf("unexpected body: %+v", body)
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok", MaxAge: 604800, HttpOnly: true})
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "user": User{ID: "u1", Email: "a@x.com", Role: "user"}})
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	session, err := cli.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "p"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token != "tok" || session.User.ID != "u1" || session.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestLoginErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "bad"})
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMeSendsCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sid")
		if err != nil || cookie.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": true, "user": User{ID: "u1"}})
	}))
	defer srv.Close()

	cli, _ := New(srv.URL, WithCookieName("sid"))
	user, err := cli.Me(context.Background(), "tok")
	if err != nil || user.ID != "u1" {
		t.Fatalf("unexpected me: %+v %v", user, err)
	}
	if _, err := cli.Me(context.Background(), "other"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded"})
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	status, err := cli.Health(context.Background())
	if err != nil || status != "degraded" {
		t.Fatalf("unexpected health: %q %v", status, err)
	}
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("localhost:4000/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
}
