package httpx

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/carebase/internal/app/bootstrap"
	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/service/auth"
	"github.com/splax/carebase/internal/service/identity"
)

// Authenticator is the session manager surface the router needs.
type Authenticator interface {
	Login(ctx context.Context, email, password, name string) (*auth.LoginResult, error)
	LoginAsGuest(ctx context.Context) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// BootstrapStatus reports the bootstrap lifecycle for health checks.
type BootstrapStatus interface {
	State() bootstrap.State
	Err() error
}

// Options carries the router's optional collaborators and cookie settings.
type Options struct {
	SessionTTL   time.Duration
	CookieSecure bool
	Bootstrap    BootstrapStatus
	DBHealth     func(context.Context) error
	Metrics      *Metrics
	MetricsPath  string
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	auth         Authenticator
	identity     identity.Resolver
	limiter      RateLimiter
	metrics      *Metrics
	bootstrap    BootstrapStatus
	dbHealth     func(context.Context) error
	sessionTTL   time.Duration
	cookieSecure bool
	metricsPath  string
}

var loginPolicy = RatePolicy{Limit: 12, Window: time.Minute}

const (
	maxBodyBytes       = 1 << 20
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc Authenticator, resolver identity.Resolver, limiter RateLimiter, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		auth:         authSvc,
		identity:     resolver,
		limiter:      limiter,
		metrics:      opts.Metrics,
		bootstrap:    opts.Bootstrap,
		dbHealth:     opts.DBHealth,
		sessionTTL:   opts.SessionTTL,
		cookieSecure: opts.CookieSecure,
		metricsPath:  opts.MetricsPath,
	}
	if r.sessionTTL <= 0 {
		r.sessionTTL = auth.DefaultSessionTTL
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.metricsPath == "" {
		r.metricsPath = "/metrics"
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle(r.metricsPath, promhttp.Handler())
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", loginPolicy, r.withIdentity(r.handleLogin))))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.withIdentity(r.handleLogout)))
	r.mux.HandleFunc("/auth/me", r.audit("/auth/me", r.withIdentity(r.handleMe)))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	IsGuest  bool   `json:"isGuest"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func userFromPrincipal(p domain.Principal) userPayload {
	return userPayload{ID: p.UserID, Email: p.Email, Name: p.Name, Role: p.Role}
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		result *auth.LoginResult
		err    error
		kind   = "password"
	)
	if payload.IsGuest {
		kind = "guest"
		result, err = r.auth.LoginAsGuest(req.Context())
	} else {
		result, err = r.auth.Login(req.Context(), payload.Email, payload.Password, payload.Name)
		if err == nil && result.Created {
			kind = "signup"
		}
	}
	r.metrics.recordLogin(kind, loginResult(err))
	if err != nil {
		status, msg := statusFromError(err)
		if status >= http.StatusInternalServerError {
			r.logger.Error("login failed", "kind", kind, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	http.SetCookie(w, sessionCookie(r.identity.CookieName(), result.SessionID, r.sessionTTL, r.cookieSecure))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userFromPrincipal(result.Principal),
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if id := r.identity.SessionID(req); id != "" {
		if err := r.auth.Logout(req.Context(), id); err != nil {
			r.logger.Warn("logout failed", "error", err)
		}
	}
	http.SetCookie(w, clearedCookie(r.identity.CookieName(), r.cookieSecure))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	p, ok := identity.FromContext(req.Context())
	if !ok || p.Source != domain.SourceSession {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          userFromPrincipal(p),
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.bootstrap != nil {
		state := r.bootstrap.State()
		component := map[string]any{"status": string(state)}
		if state != bootstrap.StateReady {
			status = "degraded"
			if err := r.bootstrap.Err(); err != nil {
				r.logger.Warn("health check: bootstrap degraded", "error", err)
			}
		}
		components["bootstrap"] = component
	}
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			r.logger.Warn("health check: database down", "error", err)
			components["database"] = map[string]any{"status": "down"}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

type contextSetter interface {
	SetContext(context.Context)
}

// withIdentity resolves the request principal and stores it on the context.
// It never rejects a request.
func (r *Router) withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p := r.identity.Resolve(req)
		ctx := identity.WithPrincipal(req.Context(), p)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
			fields = append(fields, "forwarded_for", forwarded)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if p, ok := identity.FromContext(ctx); ok {
			actor = p.Role
			fields = append(fields, "user_id", p.UserID, "identity_source", string(p.Source))
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// clientIP is the socket peer. The caller-supplied X-Forwarded-For is logged
// separately as forwarded_for.
func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
