package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

// StatusNotifier broadcasts committed transitions on the notifications exchange.
type StatusNotifier struct {
	publisher interfaces.MessagePublisher
	now       func() time.Time
}

func NewStatusNotifier(publisher interfaces.MessagePublisher) *StatusNotifier {
	return &StatusNotifier{publisher: publisher, now: time.Now}
}

var _ interfaces.Notifier = (*StatusNotifier)(nil)

func (n *StatusNotifier) Notify(ctx context.Context, order domain.Order, from, to domain.Status, changedBy domain.Role) error {
	return n.publisher.PublishStatusUpdate(ctx, interfaces.StatusUpdateMessage{
		MessageID:   uuid.NewString(),
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		OldStatus:   from,
		NewStatus:   to,
		ChangedBy:   changedBy,
		Timestamp:   n.now().UTC(),
	})
}
