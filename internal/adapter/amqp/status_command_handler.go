package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type StatusCommandHandler struct {
	service  interfaces.StatusService
	validate *validator.Validate
	logger   logger.Logger
}

func NewStatusCommandHandler(service interfaces.StatusService, logger logger.Logger) *StatusCommandHandler {
	return &StatusCommandHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// HandleStatusCommand applies one queued status command.
// Conflicts and store failures come back wrapped in interfaces.ErrRetryable.
func (h *StatusCommandHandler) HandleStatusCommand(ctx context.Context, body []byte) error {
	var msg interfaces.StatusCommandMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse status command", "", nil, err)
		return err
	}
	if err := h.validate.Struct(msg); err != nil {
		h.logger.Error("message_invalid", "Status command failed validation", "",
			map[string]interface{}{"order_id": msg.OrderID}, err)
		return err
	}

	newStatus, err := domain.ParseStatus(msg.Status)
	if err != nil {
		return err
	}
	role, err := domain.ParseRole(msg.ActorRole)
	if err != nil {
		return err
	}

	_, err = h.service.UpdateOrderStatus(ctx, interfaces.UpdateStatusCommand{
		OrderID:   msg.OrderID,
		NewStatus: newStatus,
		ActorRole: role,
		ActorID:   msg.ActorID,
		Reason:    msg.Reason,
		Notes:     msg.Notes,
	})
	switch domain.KindOf(err) {
	case domain.KindConflict, domain.KindStoreFailure:
		return fmt.Errorf("%w: %w", interfaces.ErrRetryable, err)
	}
	return err
}
