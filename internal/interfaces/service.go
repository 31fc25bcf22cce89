package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/orderflow/internal/domain"
)

// Команды для сервисов
type UpdateStatusCommand struct {
	OrderID   int64
	NewStatus domain.Status
	ActorRole domain.Role
	ActorID   *int64
	Reason    *string
	Notes     *string
}

type UpdateStatusResult struct {
	Order      *domain.Order
	FromStatus domain.Status
	Message    string
}

// Notifier is told about committed transitions. The status service calls it off the
// request path, so an error here never undoes a transition.
type Notifier interface {
	Notify(ctx context.Context, order domain.Order, from, to domain.Status, changedBy domain.Role) error
}

// Интерфейсы Сервисов (Business Logic)
type StatusService interface {
	UpdateOrderStatus(ctx context.Context, cmd UpdateStatusCommand) (*UpdateStatusResult, error)
	GetOrderStatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error)
	GetAvailableTransitions(current domain.Status, role domain.Role) []domain.Status
	GetOrderStatus(ctx context.Context, orderID int64, role domain.Role) (*TrackingOrderResponse, error)
}

type SweeperService interface {
	CancelExpiredOrders(ctx context.Context) (int, error)
	CompleteDeliveredOrders(ctx context.Context) (int, error)
	Run(ctx context.Context) error
}

// Ответы Tracking
type TrackingOrderResponse struct {
	OrderID              int64
	OrderNumber          string
	CurrentStatus        domain.Status
	Info                 domain.StatusInfo
	UpdatedAt            time.Time
	AvailableTransitions []domain.Status
}
