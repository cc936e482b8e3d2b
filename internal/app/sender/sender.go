// Package sender собирает приложение доставки писем-напоминаний:
// потребители очередей RabbitMQ и SMTP-транспорт.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/edtechhq/user-lifecycle/internal/config"
	"github.com/edtechhq/user-lifecycle/internal/lib/smtp"
	"github.com/edtechhq/user-lifecycle/internal/rabbitmq"
	senderservice "github.com/edtechhq/user-lifecycle/internal/services/sender"
)

// App представляет приложение доставки писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New создает новый экземпляр приложения доставки писем.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(transport, cfg.SiteURL, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей напоминаний и блокируется
// до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.FirstReminderQueue, a.logger, a.senderService.SendFirstReminderEmail)
	if err != nil {
		a.logger.Error("failed to start first reminder consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.FinalReminderQueue, a.logger, a.senderService.SendFinalReminderEmail)
	if err != nil {
		a.logger.Error("failed to start final reminder consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
