package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/catalog"
	"github.com/example/lab-reservations/internal/config"
	"github.com/example/lab-reservations/internal/events"
	httptransport "github.com/example/lab-reservations/internal/http"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/logging"
	"github.com/example/lab-reservations/internal/persistence/sqlstore"
	"github.com/example/lab-reservations/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("lab scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("lab scheduler API listening", "addr", server.Addr, "db_driver", cfg.DBDriver, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// app owns every long-lived dependency of the process.
type app struct {
	Handler http.Handler

	closers []func() error
	logger  *slog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(dialect, cfg.DBDSN))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	if cfg.CatalogPath != "" {
		if err := seedCatalog(ctx, store, cfg.CatalogPath, logger); err != nil {
			return nil, err
		}
	}

	locker, err := newLocker(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	loc := cfg.Location
	today := func() scheduler.Date { return scheduler.DateOf(time.Now().In(loc)) }
	ledger := audit.NewLedger(store.Audit(), loc)
	engine := scheduler.NewEngine(store.Rooms(), store.Reservations(), today, cfg.QueryParallelism)

	reservations := application.NewReservationService(application.ReservationServiceDeps{
		Store:        store,
		Reservations: store.Reservations(),
		Ledger:       ledger,
		Locker:       locker,
		Publisher:    publisher,
		Location:     loc,
		Logger:       logger,
	})
	availability := application.NewAvailabilityService(engine, logger)
	history := application.NewHistoryService(ledger, logger)
	directory := application.NewDirectoryService(store.Owners(), store.Rooms(), logger)

	a.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(reservations, logger),
		Availability: httptransport.NewAvailabilityHandler(availability, logger),
		Directory:    httptransport.NewDirectoryHandler(directory, logger),
		History:      httptransport.NewHistoryHandler(history, logger),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

func seedCatalog(ctx context.Context, store *sqlstore.Store, path string, logger *slog.Logger) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	result, err := catalog.Seed(ctx, store, c)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", "path", path, "owners", result.Owners, "rooms", result.Rooms)
	return nil
}

// newLocker picks the Redis locker when an address is configured so several
// replicas serialize writes to the same room.
func newLocker(ctx context.Context, cfg config.Config, a *app) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemoryLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	a.logger.Info("using redis room locker", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	return lock.NewRedisLocker(client, lock.RedisOptions{TTL: cfg.LockTTL}), nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("publishing reservation changes", "queue", cfg.AMQPQueue)
	return publisher, nil
}
