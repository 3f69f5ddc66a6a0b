package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/splax/carebase/internal/app/bootstrap"
	"github.com/splax/carebase/internal/app/migrate"
	httpx "github.com/splax/carebase/internal/http"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/internal/repository/memory"
	"github.com/splax/carebase/internal/repository/postgres"
	"github.com/splax/carebase/internal/service/auth"
	"github.com/splax/carebase/internal/service/identity"
	"github.com/splax/carebase/internal/service/medication"
	"github.com/splax/carebase/internal/service/news"
	"github.com/splax/carebase/pkg/config"
	"github.com/splax/carebase/pkg/crypto"
	"github.com/splax/carebase/pkg/feed"
	"github.com/splax/carebase/pkg/logger"
)

// stores groups the repository implementations selected by STORE_DRIVER.
type stores struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	news       repository.NewsRepository
	medication repository.MedicationRepository
	schema     bootstrap.SchemaEnsurer
	ping       func(context.Context) error
	close      func()
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to configure store", "error", err)
		os.Exit(1)
	}
	defer st.close()

	metrics := httpx.NewMetrics(nil)

	authSvc := auth.New(st.users, st.sessions, crypto.Bcrypt{}, log, cfg)
	resolver := identity.New(authSvc, st.users, log, cfg)

	publisher, closePublisher := notificationPublisher(ctx, cfg, log)
	defer closePublisher()

	services := []bootstrap.Service{
		news.NewScheduler(st.news, newsFetcher(cfg, log), log, cfg.NewsInterval),
		medication.NewNotifier(st.medication, publisher, log, cfg.MedicationInterval),
	}
	registry := bootstrap.New(st.schema, log, services,
		bootstrap.WithEnsureTimeout(cfg.BootstrapWait),
		bootstrap.WithStateHook(metrics.SetBootstrapState),
	)
	if err := registry.Start(ctx); err != nil {
		log.Warn("continuing in degraded state", "error", err)
	}
	defer registry.Shutdown()

	limiter := rateLimiter(ctx, cfg, log)
	router := httpx.NewRouter(log, authSvc, resolver, limiter, httpx.Options{
		SessionTTL:   authSvc.SessionTTL(),
		CookieSecure: cfg.SessionCookieSecure,
		Bootstrap:    registry,
		DBHealth:     st.ping,
		Metrics:      metrics,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver, "production", cfg.IsProduction())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func openStores(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (stores, error) {
	if strings.EqualFold(cfg.StoreDriver, "memory") {
		log.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		return stores{
			users:      mem,
			sessions:   mem,
			news:       mem,
			medication: mem,
			close:      func() {},
		}, nil
	}

	// pgxpool connects lazily, so an unreachable database surfaces as a
	// degraded bootstrap instead of a startup crash.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	runner, err := migrate.New(cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	repo := postgres.New(pool, cfg.StoreTimeout)
	return stores{
		users:      repo,
		sessions:   repo,
		news:       repo,
		medication: repo,
		schema:     runner,
		ping:       repo.Ping,
		close:      pool.Close,
	}, nil
}

func newsFetcher(cfg config.APIConfig, log *slog.Logger) news.Fetcher {
	if strings.TrimSpace(cfg.NewsFeedURL) == "" {
		return nil
	}
	client, err := feed.NewClient(cfg.NewsFeedURL, cfg.NewsFeedAPIKey, nil)
	if err != nil {
		log.Warn("news feed disabled", "error", err)
		return nil
	}
	return client
}

// notificationPublisher returns the reminder publisher and a closer for the
// Redis client behind it. The closer is never nil.
func notificationPublisher(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (medication.Publisher, func()) {
	noop := func() {}
	addr := strings.TrimSpace(cfg.NotifyRedisAddr)
	if addr == "" {
		return medication.NewLogPublisher(log), noop
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.NotifyRedisPass, DB: cfg.NotifyRedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis notification publisher unavailable", "error", err)
		_ = client.Close()
		return medication.NewLogPublisher(log), noop
	}
	return redisPublisher(client, cfg.NotifyChannel, log)
}

func redisPublisher(client *redis.Client, channel string, log *slog.Logger) (medication.Publisher, func()) {
	publisher, err := medication.NewRedisPublisher(client, channel)
	if err != nil {
		_ = client.Close()
		return medication.NewLogPublisher(log), func() {}
	}
	return publisher, func() {
		if err := client.Close(); err != nil {
			log.Warn("close redis notification publisher", "error", err)
		}
	}
}

func rateLimiter(ctx context.Context, cfg config.APIConfig, log *slog.Logger) httpx.RateLimiter {
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		opts := &redis.Options{Addr: addr, Password: cfg.RateLimitRedisPass, DB: cfg.RateLimitRedisDB}
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, opts, log)
		if err == nil {
			return redisLimiter
		}
		log.Warn("redis rate limiter unavailable", "error", err)
	}
	return httpx.NewMemoryRateLimiter()
}
