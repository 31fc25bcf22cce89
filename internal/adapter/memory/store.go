// Package memory keeps orders and their status ledger in process memory.
// It backs tests and local runs with the same contracts as the postgres adapter.
package memory

import (
	"context"
	"sync"

	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type Store struct {
	mu          sync.Mutex
	orders      map[int64]domain.Order
	history     []domain.StatusHistoryEntry
	nextOrderID int64
	nextEntryID int64
}

func NewStore() *Store {
	return &Store{orders: make(map[int64]domain.Order)}
}

type txKey struct{ store *Store }

// lock acquires the store unless ctx already runs inside one of its transactions.
func (s *Store) lock(ctx context.Context) func() {
	if held, _ := ctx.Value(txKey{s}).(bool); held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type txManager struct {
	store *Store
}

func NewTxManager(store *Store) interfaces.TxManager {
	return &txManager{store: store}
}

// Execute serializes fn against every other store access and restores the
// previous state when fn fails.
func (m *txManager) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	s := m.store
	if held, _ := ctx.Value(txKey{s}).(bool); held {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make(map[int64]domain.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = o
	}
	historyLen := len(s.history)
	nextOrderID, nextEntryID := s.nextOrderID, s.nextEntryID

	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.orders = orders
		s.history = s.history[:historyLen]
		s.nextOrderID, s.nextEntryID = nextOrderID, nextEntryID
		return err
	}
	return nil
}
