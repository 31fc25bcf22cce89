package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	notificationsExchange = "notifications_fanout"

	commandsExchange = "order_status_topic"
	commandsQueue    = "order_status_commands"
	commandsKey      = "order.status.#"
	dlqExchange      = "order_status_dlq"
	dlqQueue         = "order_status_commands_dlq"
)

func declareNotifications(ch Channel) error {
	if err := ch.ExchangeDeclare(notificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare notifications exchange: %w", err)
	}
	return nil
}

func declareCommands(ch Channel) error {
	if err := ch.ExchangeDeclare(commandsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare commands exchange: %w", err)
	}

	// DLQ
	if err := ch.ExchangeDeclare(dlqExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueue, "#", dlqExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": dlqExchange,
	}
	q, err := ch.QueueDeclare(commandsQueue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare commands queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, commandsKey, commandsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind commands queue: %w", err)
	}
	return nil
}
