// Package app assembles the dashboard service from configuration: data store,
// breakers, metrics, notification fan-out, fetch pool and HTTP router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/api/handlers"
	"github.com/wardboard/go-ward/internal/api/middleware"
	"github.com/wardboard/go-ward/internal/config"
	"github.com/wardboard/go-ward/internal/detail"
	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/infrastructure/postgres"
	"github.com/wardboard/go-ward/internal/infrastructure/redpanda"
	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/observability/metrics"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/store/memory"
	"github.com/wardboard/go-ward/pkg/circuitbreaker"
	"github.com/wardboard/go-ward/pkg/idempotency"
	"github.com/wardboard/go-ward/pkg/workerpool"
)

// ServiceName identifies the service in traces and health output
const ServiceName = "dashboard-api"

// App holds the assembled service
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Store    store.DataStore
	Breakers *circuitbreaker.Store
	Pool     *workerpool.Pool
	Inbox    *idempotency.Inbox
	Detail   detail.Deps

	pg       *pgxpool.Pool
	producer *redpanda.Producer
}

// New connects the configured backends. Without DATABASE_URL the in-memory
// demo ward is used; without KAFKA_BROKERS nothing is published.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(nil)}

	var base store.DataStore
	if cfg.UsesDemoStore() {
		mem := memory.New()
		if err := memory.SeedDemo(mem, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("seed demo ward: %w", err)
		}
		logger.Warn("DATABASE_URL not set, serving the in-memory demo ward")
		base = mem
	} else {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.pg = pool
		base = postgres.NewStore(pool, logger)
		logger.Info("connected to database")
	}

	breakerCfg := circuitbreaker.DefaultConfig("store")
	breakerCfg.FailureThreshold = cfg.BreakerFailureThreshold
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		a.Metrics.SetBreakerState(name, string(to))
	}
	a.Breakers = circuitbreaker.GuardStore(store.Instrument(base, a.Metrics, logger), breakerCfg, logger)
	a.Store = a.Breakers

	notifiers := []notify.Notifier{notify.Logging(logger), a.Metrics.Notifier()}
	var events detail.EventSink
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		pcfg := redpanda.DefaultProducerConfig()
		pcfg.Brokers = brokers
		producer, err := redpanda.NewProducer(pcfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.producer = producer
		publisher := redpanda.NewPublisher(producer, cfg.NotificationTopic, cfg.DischargeTopic, logger)
		notifiers = append(notifiers, publisher)
		events = publisher
		logger.Info("publishing notifications", zap.Strings("brokers", brokers))
	}

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.FetchWorkers
	a.Pool = workerpool.New(poolCfg, logger)
	a.Pool.Start()

	a.Inbox = idempotency.NewInbox(idempotency.DefaultInboxConfig(), logger)

	a.Detail = detail.Deps{
		Hooks: hooks.Deps{
			Store:    a.Store,
			Notifier: notify.Multi(notifiers...),
			Logger:   logger,
			OnStale:  a.Metrics.ObserveStale,
		},
		Pool:     a.Pool,
		Observer: a.Metrics,
		Events:   events,
	}
	return a, nil
}

// ScreenConfig is the detail screen configuration
func (a *App) ScreenConfig() detail.Config {
	return detail.Config{ParentRoute: a.Config.ParentRoute}
}

// Router builds the HTTP handler
func (a *App) Router() (http.Handler, error) {
	apiKeys, err := a.Config.APIKeyMap()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(a.Config.CORSOrigin))
	r.Use(middleware.Recover(a.Logger))
	r.Use(middleware.Logger(a.Logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.Metrics(a.Metrics))

	r.Get("/health", a.health)
	r.Get("/ready", a.ready)
	r.Handle("/metrics", a.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(apiKeys))
		r.Use(a.Inbox.Middleware(func(r *http.Request) string {
			return middleware.GetClientID(r.Context())
		}))
		handlers.Mount(r,
			handlers.NewPatientHandler(a.Detail, a.ScreenConfig(), a.Logger),
			handlers.NewDashboardHandler(a.Detail.Hooks, a.Logger))
	})
	return r, nil
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"%s"}`, ServiceName)
}

// ready fails while a backend is unreachable, a store breaker is open or the
// fetch pool is saturated
func (a *App) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.Ping(r.Context()); err != nil {
		http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Ping checks the backends the service depends on
func (a *App) Ping(ctx context.Context) error {
	if a.pg != nil {
		if err := a.pg.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Ping(ctx); err != nil {
			return fmt.Errorf("redpanda: %w", err)
		}
	}
	if !a.Breakers.Manager().Healthy() {
		return fmt.Errorf("store circuit open")
	}
	if !a.Pool.IsHealthy() {
		return fmt.Errorf("fetch pool saturated")
	}
	return nil
}

// Close releases every backend
func (a *App) Close() {
	if a.Pool != nil {
		if err := a.Pool.Stop(); err != nil {
			a.Logger.Warn("worker pool stop", zap.Error(err))
		}
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
func (a *App) Serve(ctx context.Context) error {
	h, err := a.Router()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("starting dashboard API", zap.String("port", a.Config.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.Logger.Info("server stopped")
	return nil
}
