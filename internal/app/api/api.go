// Package api собирает администраторское HTTP-приложение: хранилища, кеш,
// очередь уведомлений, сервисы жизненного цикла и маршруты.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/edtechhq/user-lifecycle/internal/cache"
	"github.com/edtechhq/user-lifecycle/internal/config"
	"github.com/edtechhq/user-lifecycle/internal/lib/jwt"
	"github.com/edtechhq/user-lifecycle/internal/migrations"
	"github.com/edtechhq/user-lifecycle/internal/notifier"
	"github.com/edtechhq/user-lifecycle/internal/rabbitmq"
	"github.com/edtechhq/user-lifecycle/internal/services/archival"
	"github.com/edtechhq/user-lifecycle/internal/services/classifier"
	"github.com/edtechhq/user-lifecycle/internal/services/inactivity"
	"github.com/edtechhq/user-lifecycle/internal/services/reminder"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// App представляет администраторское HTTP-приложение.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	archive *repository.ArchiveStorage
	conn    *amqp.Connection
	ch      *amqp.Channel
}

// New создает новый экземпляр приложения администраторского API.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, "./migrations/users"); err != nil {
		return nil, fmt.Errorf("failed to run users migrations: %w", err)
	}

	archiveDB, err := repository.NewArchive(cfg.ArchiveConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect archive storage: %w", err)
	}
	if err := migrations.Run(archiveDB.DB, "./migrations/archive"); err != nil {
		return nil, fmt.Errorf("failed to run archive migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	cl := classifier.New(classifier.ThresholdsFromDays(
		cfg.CutoffDays,
		cfg.FirstReminderLeadDays,
		cfg.FirstReminderWindowDays,
		cfg.FinalReminderDelayDays,
		cfg.ArchiveDelayDays,
	))
	queueNotifier := notifier.New(ch, logger)
	schedulerService := reminder.New(db, queueNotifier, cl, cfg.JobWorkers, logger)
	archivalEngine := archival.New(db, archiveDB, cacheRedis, cfg.JobWorkers, logger)
	job := inactivity.New(db, schedulerService, archivalEngine, cl, cacheRedis, logger)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, archivalEngine, job)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:  srv,
		logger:  logger,
		db:      db,
		archive: archiveDB,
		conn:    conn,
		ch:      ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeResources(a.ch, a.conn, a.logger)
		_ = a.db.DB.Close()
		_ = a.archive.DB.Close()
		return err
	}
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}
