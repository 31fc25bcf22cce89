package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type orderRepository struct {
	store *Store
}

func NewOrderRepository(store *Store) interfaces.OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order, createdBy domain.Role) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	s := r.store
	defer s.lock(ctx)()

	s.nextOrderID++
	order.ID = s.nextOrderID
	s.orders[order.ID] = *order

	entry := domain.CreationEntry(order, createdBy, nil)
	s.nextEntryID++
	entry.ID = s.nextEntryID
	s.history = append(s.history, entry)
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	s := r.store
	defer s.lock(ctx)()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, expected, next domain.Status, at time.Time) error {
	s := r.store
	defer s.lock(ctx)()

	order, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != expected {
		return domain.ErrStatusMismatch
	}

	order.Status = next
	order.UpdatedAt = at
	s.orders[id] = order
	return nil
}

func (r *orderRepository) FindByStatusCreatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error) {
	return r.filter(ctx, func(o domain.Order) bool {
		return o.Status == status && o.CreatedAt.Before(before)
	}), nil
}

func (r *orderRepository) FindByStatusUpdatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error) {
	return r.filter(ctx, func(o domain.Order) bool {
		return o.Status == status && o.UpdatedAt.Before(before)
	}), nil
}

func (r *orderRepository) filter(ctx context.Context, keep func(domain.Order) bool) []*domain.Order {
	s := r.store
	defer s.lock(ctx)()

	var out []*domain.Order
	for _, o := range s.orders {
		if keep(o) {
			order := o
			out = append(out, &order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
