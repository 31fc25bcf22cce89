package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

const orderColumns = `id, number, user_id, restaurant_id, total_amount, status, created_at, updated_at`

type orderRepository struct {
	db DB
	tx interfaces.TxManager
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db, tx: NewTxManager(db)}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order, createdBy domain.Role) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return r.tx.Execute(ctx, func(ctx context.Context) error {
		q := executor(ctx, r.db)

		query := `
			INSERT INTO orders (number, user_id, restaurant_id, total_amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err := q.QueryRow(ctx, query,
			order.Number, order.UserID, order.RestaurantID, order.TotalAmount,
			string(order.Status), order.CreatedAt, order.UpdatedAt,
		).Scan(&order.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		// Начальная запись истории
		entry := domain.CreationEntry(order, createdBy, nil)
		if err := insertHistory(ctx, q, &entry); err != nil {
			return err
		}
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(executor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return order, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, expected, next domain.Status, at time.Time) error {
	q := executor(ctx, r.db)

	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := q.Exec(ctx, query, string(next), at, id, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Ничего не обновлено: заказа нет или статус уже другой
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order %d: %w", id, err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrStatusMismatch
}

func (r *orderRepository) FindByStatusCreatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND created_at < $2 ORDER BY id`
	return r.list(ctx, query, string(status), before)
}

func (r *orderRepository) FindByStatusUpdatedBefore(ctx context.Context, status domain.Status, before time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY id`
	return r.list(ctx, query, string(status), before)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row Row) (*domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.UserID, &order.RestaurantID,
		&order.TotalAmount, &status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = domain.Status(status)
	return &order, nil
}
