package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig описывает очередь и ключ маршрутизации, с которым она связана.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Имена очередей и ключи маршрутизации напоминаний о неактивности.
const (
	FirstReminderQueue      = "reminders.first"
	FinalReminderQueue      = "reminders.final"
	FirstReminderRoutingKey = "reminder.first"
	FinalReminderRoutingKey = "reminder.final"
)

// GetReminderQueues возвращает конфигурацию очередей напоминаний.
func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: FirstReminderQueue, RoutingKey: FirstReminderRoutingKey},
		{QueueName: FinalReminderQueue, RoutingKey: FinalReminderRoutingKey},
	}
}

// SetupChannel открывает канал, объявляет durable exchange "notifications"
// и привязывает к нему переданные очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		"notifications", // exchange
		"direct",        // тип
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			"notifications",
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
