package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/orderflow/internal/domain"
)

// Интерфейсы Репозиториев (Adapter/Postgres, Adapter/Memory)
type OrderRepository interface {
	// Create stores a new order together with its creation history entry.
	Create(ctx context.Context, order *domain.Order, createdBy domain.Role) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	// UpdateStatus writes next only while the stored status still equals expected.
	// It returns domain.ErrStatusMismatch when the row moved on, domain.ErrOrderNotFound when absent.
	UpdateStatus(ctx context.Context, id int64, expected, next domain.Status, at time.Time) error
	FindByStatusCreatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error)
	FindByStatusUpdatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error)
}

// HistoryRepository is the append-only status ledger. It has no update or delete.
type HistoryRepository interface {
	Record(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByOrder(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error)
}

// TxManager runs fn in one transaction; repositories pick the transaction up from ctx.
type TxManager interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
