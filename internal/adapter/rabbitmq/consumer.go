package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

const reconnectDelay = 5 * time.Second

type consumer struct {
	conn     Connection
	prefetch int
	logger   logger.Logger
}

func NewConsumer(conn Connection, prefetch int, logger logger.Logger) interfaces.MessageConsumer {
	return &consumer{conn: conn, prefetch: prefetch, logger: logger}
}

// ConsumeStatusCommands delivers queued status commands to handler until ctx is done.
// Failed commands go to the DLQ unless the handler marks them retryable.
func (c *consumer) ConsumeStatusCommands(ctx context.Context, handler interfaces.StatusCommandHandler) error {
	return c.keepConsuming(ctx, "status_commands", func(ctx context.Context) error {
		return c.consumeCommands(ctx, handler)
	})
}

func (c *consumer) ConsumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	return c.keepConsuming(ctx, "notifications", func(ctx context.Context) error {
		return c.consumeNotifications(ctx, handler)
	})
}

func (c *consumer) keepConsuming(ctx context.Context, name string, consume func(ctx context.Context) error) error {
	for {
		err := consume(ctx)

		// Контекст отменен: выходим
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.logger.Error("consumer_disconnected", "Consumer disconnected, reconnecting", "",
			map[string]interface{}{"consumer": name, "retry_in": reconnectDelay.String()}, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *consumer) consumeCommands(ctx context.Context, handler interfaces.StatusCommandHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := declareCommands(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(commandsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			c.settle(msg, handler(traceContext(ctx, msg.Headers), msg.Body))
		}
	}
}

// settle acks a handled message. A retryable failure is requeued once;
// everything else goes to the DLQ.
func (c *consumer) settle(msg amqp.Delivery, err error) {
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	requeue := errors.Is(err, interfaces.ErrRetryable) && !msg.Redelivered
	c.logger.Debug("command_rejected", "Status command not applied", "",
		map[string]interface{}{"requeue": requeue, "error": err.Error(), "message_id": msg.MessageId})
	_ = msg.Nack(false, requeue)
}

func (c *consumer) consumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := declareNotifications(ch); err != nil {
		return err
	}

	// Временная эксклюзивная очередь на каждого подписчика
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", notificationsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			// Ошибки обработки уведомлений игнорируются
			_ = handler(traceContext(ctx, msg.Headers), msg.Body)
		}
	}
}
