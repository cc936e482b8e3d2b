package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
)

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Обработка ограничена семафором в размер QoS; ошибка обработчика приводит
// к Nack с возвратом сообщения в очередь.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(delivery amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(delivery.Body); err != nil {
						if nackErr := delivery.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := delivery.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
