// Package job собирает приложение периодической проверки неактивности.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/edtechhq/user-lifecycle/internal/cache"
	"github.com/edtechhq/user-lifecycle/internal/config"
	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/notifier"
	"github.com/edtechhq/user-lifecycle/internal/rabbitmq"
	"github.com/edtechhq/user-lifecycle/internal/services/archival"
	"github.com/edtechhq/user-lifecycle/internal/services/classifier"
	"github.com/edtechhq/user-lifecycle/internal/services/inactivity"
	"github.com/edtechhq/user-lifecycle/internal/services/reminder"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// App представляет приложение периодической проверки неактивности.
type App struct {
	job      *inactivity.Job
	interval time.Duration
	db       *repository.Storage
	archive  *repository.ArchiveStorage
	conn     *amqp.Connection
	ch       *amqp.Channel
	logger   *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения периодической проверки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	archiveDB, err := repository.NewArchive(cfg.ArchiveConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect archive storage: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
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

	return &App{
		job:      inactivity.New(db, schedulerService, archivalEngine, cl, cacheRedis, logger),
		interval: cfg.JobInterval,
		db:       db,
		archive:  archiveDB,
		conn:     conn,
		ch:       ch,
		logger:   logger,
	}, nil
}

// Run выполняет проход проверки сразу после старта, затем по тикеру,
// пока не отменён контекст.
func (a *App) Run(ctx context.Context) error {
	a.runOnce(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.runOnce(ctx)
		case <-ctx.Done():
			a.logger.Info("shutting down inactivity job")
			closeResources(a.ch, a.conn, a.logger)
			_ = a.db.DB.Close()
			_ = a.archive.DB.Close()
			return nil
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	report, err := a.job.Run(ctx, time.Now())
	if err != nil {
		a.logger.Error("inactivity check run failed", sl.Err(err))
		return
	}
	a.logger.Info("inactivity check run finished",
		slog.Int("candidates", report.CandidatesChecked),
		slog.Int("first_reminders", report.FirstRemindersSent),
		slog.Int("final_reminders", report.FinalRemindersSent),
		slog.Int("archived", report.UsersArchived),
		slog.Int("failures", len(report.Failures)))
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
