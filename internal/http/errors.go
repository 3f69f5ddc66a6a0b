package httpx

import (
	"errors"
	"net/http"

	"github.com/splax/carebase/internal/service/auth"
)

// statusFromError maps the auth error taxonomy onto a status code and a
// client-safe message. Anything unrecognised is an opaque 500.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusBadRequest, "password must be at most 72 bytes"
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, "email and password are required"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict, "email already registered"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// loginResult labels an outcome for the login metric.
func loginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrValidation):
		return "invalid"
	case errors.Is(err, auth.ErrUserNotFound):
		return "unknown_user"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "bad_password"
	case errors.Is(err, auth.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
