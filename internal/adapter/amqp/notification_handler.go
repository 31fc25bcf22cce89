package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type NotificationHandler struct {
	logger logger.Logger
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var msg interfaces.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	label := string(msg.NewStatus)
	if info, ok := domain.Info(msg.NewStatus); ok {
		label = info.Label
	}

	h.logger.Info("notification_received",
		fmt.Sprintf("Order %s: %s -> %s (by %s)", msg.OrderNumber, msg.OldStatus, msg.NewStatus, msg.ChangedBy),
		msg.MessageID, map[string]interface{}{
			"order_id":     msg.OrderID,
			"order_number": msg.OrderNumber,
			"user_id":      msg.UserID,
			"old_status":   msg.OldStatus,
			"new_status":   msg.NewStatus,
			"label":        label,
			"changed_by":   msg.ChangedBy,
		})
	return nil
}
