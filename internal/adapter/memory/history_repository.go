package memory

import (
	"context"
	"sort"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type historyRepository struct {
	store *Store
}

func NewHistoryRepository(store *Store) interfaces.HistoryRepository {
	return &historyRepository{store: store}
}

func (r *historyRepository) Record(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	s := r.store
	defer s.lock(ctx)()

	s.nextEntryID++
	entry.ID = s.nextEntryID
	s.history = append(s.history, *entry)
	return nil
}

func (r *historyRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error) {
	s := r.store
	defer s.lock(ctx)()

	var out []*domain.StatusHistoryEntry
	for _, e := range s.history {
		if e.OrderID == orderID {
			entry := e
			out = append(out, &entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
