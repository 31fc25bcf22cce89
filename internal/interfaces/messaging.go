package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/YelzhanWeb/orderflow/internal/domain"
)

// Сообщения RabbitMQ
type StatusUpdateMessage struct {
	MessageID   string        `json:"message_id"`
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	UserID      int64         `json:"user_id"`
	OldStatus   domain.Status `json:"old_status"`
	NewStatus   domain.Status `json:"new_status"`
	ChangedBy   domain.Role   `json:"changed_by"`
	Timestamp   time.Time     `json:"timestamp"`
}

// StatusCommandMessage asks the engine to move an order; published by driver and restaurant apps.
type StatusCommandMessage struct {
	OrderID   int64   `json:"order_id" validate:"required,gt=0"`
	Status    string  `json:"status" validate:"required"`
	ActorRole string  `json:"actor_role" validate:"required"`
	ActorID   *int64  `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=255"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Интерфейсы Messaging (Adapter/RabbitMQ)
type MessagePublisher interface {
	PublishStatusUpdate(ctx context.Context, msg StatusUpdateMessage) error
}

type MessageConsumer interface {
	ConsumeStatusCommands(ctx context.Context, handler StatusCommandHandler) error
	ConsumeNotifications(ctx context.Context, handler NotificationHandler) error
}

// ErrRetryable marks a handler error whose message should go back on the queue
// instead of the dead-letter queue.
var ErrRetryable = errors.New("retryable")

type (
	StatusCommandHandler func(ctx context.Context, body []byte) error
	NotificationHandler  func(ctx context.Context, body []byte) error
)
