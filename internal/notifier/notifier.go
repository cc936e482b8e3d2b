// Package notifier реализует отправку напоминаний через очередь уведомлений.
//
// Публикация persistent-сообщения в durable-очередь считается подтверждённой
// отправкой: письмо доставляет отдельный сервис-потребитель как минимум один раз.
// Ошибка публикации трактуется как временная — планировщик не выставляет флаг
// и повторит отправку на следующем проходе.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/rabbitmq"
)

// QueueNotifier публикует сообщения о напоминаниях в RabbitMQ.
type QueueNotifier struct {
	ch  *amqp.Channel
	log *slog.Logger
}

// New создает новый экземпляр QueueNotifier.
func New(ch *amqp.Channel, log *slog.Logger) *QueueNotifier {
	return &QueueNotifier{
		ch:  ch,
		log: log,
	}
}

// SendFirstReminder публикует сообщение о первом напоминании.
func (n *QueueNotifier) SendFirstReminder(ctx context.Context, u *models.User) error {
	return n.publish(ctx, rabbitmq.FirstReminderRoutingKey, u, models.ReminderStageFirst)
}

// SendFinalReminder публикует сообщение о финальном напоминании.
func (n *QueueNotifier) SendFinalReminder(ctx context.Context, u *models.User) error {
	return n.publish(ctx, rabbitmq.FinalReminderRoutingKey, u, models.ReminderStageFinal)
}

func (n *QueueNotifier) publish(ctx context.Context, routingKey string, u *models.User, stage string) error {
	const op = "notifier.publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	msg := models.ReminderMessage{
		UserUID:  u.UID,
		Email:    u.Email,
		Username: u.Username,
		Stage:    stage,
	}
	if err := rabbitmq.PublishMessage(n.ch, "notifications", routingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n.log.Info("reminder message published",
		slog.String("user_uid", u.UID), slog.String("stage", stage))
	return nil
}
