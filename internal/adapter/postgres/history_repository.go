package postgres

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type historyRepository struct {
	db DB
}

func NewHistoryRepository(db DB) interfaces.HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Record(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	return insertHistory(ctx, executor(ctx, r.db), entry)
}

func (r *historyRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, from_status, to_status, changed_by, changed_by_id, reason, notes, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := executor(ctx, r.db).Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.StatusHistoryEntry
	for rows.Next() {
		var (
			entry     domain.StatusHistoryEntry
			from      *string
			to, actor string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &from, &to, &actor,
			&entry.ChangedByID, &entry.Reason, &entry.Notes, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if from != nil {
			s := domain.Status(*from)
			entry.FromStatus = &s
		}
		entry.ToStatus = domain.Status(to)
		entry.ChangedBy = domain.Role(actor)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status history: %w", err)
	}
	return entries, nil
}

func insertHistory(ctx context.Context, q Querier, entry *domain.StatusHistoryEntry) error {
	var from *string
	if entry.FromStatus != nil {
		s := string(*entry.FromStatus)
		from = &s
	}

	query := `
		INSERT INTO order_status_history
			(order_id, from_status, to_status, changed_by, changed_by_id, reason, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		entry.OrderID, from, string(entry.ToStatus), string(entry.ChangedBy),
		entry.ChangedByID, entry.Reason, entry.Notes, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}
