// Package bootstrap brings the process from not_ready to ready: it ensures
// the schema exists and then starts every background service exactly once.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the bootstrap lifecycle state.
type State string

const (
	StateNotReady State = "not_ready"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
)

const defaultEnsureTimeout = 30 * time.Second

// SchemaEnsurer creates missing tables. It must be safe to call concurrently.
type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

// SchemaFunc adapts a function to SchemaEnsurer.
type SchemaFunc func(ctx context.Context) error

// Ensure calls f.
func (f SchemaFunc) Ensure(ctx context.Context) error { return f(ctx) }

// Service is a background job. Start must be idempotent.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// Registry owns bootstrap state and the registered services.
type Registry struct {
	schema        SchemaEnsurer
	services      []Service
	logger        *slog.Logger
	ensureTimeout time.Duration
	onState       func(State)

	once    sync.Once
	mu      sync.RWMutex
	state   State
	err     error
	started []Service
}

// Option customises a Registry.
type Option func(*Registry)

// WithEnsureTimeout bounds the schema ensure step.
func WithEnsureTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ensureTimeout = d
		}
	}
}

// WithStateHook is called on every state transition, e.g. to update a gauge.
func WithStateHook(fn func(State)) Option {
	return func(r *Registry) { r.onState = fn }
}

// New constructs a Registry in StateNotReady.
func New(schema SchemaEnsurer, logger *slog.Logger, services []Service, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		schema:        schema,
		services:      services,
		logger:        logger.With("component", "bootstrap"),
		ensureTimeout: defaultEnsureTimeout,
		state:         StateNotReady,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.onState != nil {
		r.onState(StateNotReady)
	}
	return r
}

// Start runs the bootstrap sequence once per Registry. Later calls, including
// concurrent ones, wait for the first run and return its outcome. Failures
// leave the registry degraded rather than aborting the process.
func (r *Registry) Start(ctx context.Context) error {
	r.once.Do(func() {
		r.finish(r.run(ctx))
	})
	return r.Err()
}

func (r *Registry) run(ctx context.Context) error {
	if r.schema != nil {
		ensureCtx, cancel := context.WithTimeout(ctx, r.ensureTimeout)
		err := r.schema.Ensure(ensureCtx)
		cancel()
		if err != nil {
			r.logger.Error("schema ensure failed", "error", err)
			return fmt.Errorf("ensure schema: %w", err)
		}
		r.logger.Info("schema ready")
	}

	var errs []error
	for _, svc := range r.services {
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("background service failed to start", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("start %s: %w", svc.Name(), err))
			continue
		}
		r.mu.Lock()
		r.started = append(r.started, svc)
		r.mu.Unlock()
		r.logger.Info("background service started", "service", svc.Name())
	}
	return errors.Join(errs...)
}

func (r *Registry) finish(err error) {
	r.mu.Lock()
	if err != nil {
		r.state = StateDegraded
		r.err = err
	} else {
		r.state = StateReady
	}
	state := r.state
	r.mu.Unlock()

	if r.onState != nil {
		r.onState(state)
	}
	if err != nil {
		r.logger.Warn("bootstrap degraded", "error", err)
		return
	}
	r.logger.Info("bootstrap complete", "services", len(r.services))
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the failure that degraded the registry, if any.
func (r *Registry) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Shutdown stops started services in reverse start order.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()
	for i := len(started) - 1; i >= 0; i-- {
		started[i].Stop()
		r.logger.Info("background service stopped", "service", started[i].Name())
	}
}
