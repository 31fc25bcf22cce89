package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/orderflow/internal/domain"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newOrder(t *testing.T, number string, created time.Time) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(number, 1, 2, 30, created)
	require.NoError(t, err)
	return order
}

func TestCreateWritesCreationEntry(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepository(store)
	history := NewHistoryRepository(store)
	ctx := context.Background()

	order := newOrder(t, "ORD-1", base)
	require.NoError(t, orders.Create(ctx, order, domain.RoleCustomer))
	assert.Equal(t, int64(1), order.ID)

	entries, err := history.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].FromStatus)
	assert.Equal(t, domain.StatusPending, entries[0].ToStatus)
	assert.Equal(t, domain.RoleCustomer, entries[0].ChangedBy)
}

func TestFindByIDReturnsCopy(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepository(store)
	ctx := context.Background()

	order := newOrder(t, "ORD-1", base)
	require.NoError(t, orders.Create(ctx, order, domain.RoleCustomer))

	found, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	found.Status = domain.StatusRefunded

	again, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)

	_, err = orders.FindByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestUpdateStatusIsConditional(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepository(store)
	ctx := context.Background()

	order := newOrder(t, "ORD-1", base)
	require.NoError(t, orders.Create(ctx, order, domain.RoleCustomer))

	at := base.Add(time.Minute)
	require.NoError(t, orders.UpdateStatus(ctx, order.ID, domain.StatusPending, domain.StatusConfirmed, at))

	err := orders.UpdateStatus(ctx, order.ID, domain.StatusPending, domain.StatusCancelled, at)
	assert.ErrorIs(t, err, domain.ErrStatusMismatch)

	err = orders.UpdateStatus(ctx, 99, domain.StatusPending, domain.StatusCancelled, at)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	found, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, found.Status)
	assert.Equal(t, at, found.UpdatedAt)
}

func TestTxRollback(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepository(store)
	history := NewHistoryRepository(store)
	tx := NewTxManager(store)
	ctx := context.Background()

	order := newOrder(t, "ORD-1", base)
	require.NoError(t, orders.Create(ctx, order, domain.RoleCustomer))

	boom := errors.New("boom")
	err := tx.Execute(ctx, func(ctx context.Context) error {
		if err := orders.UpdateStatus(ctx, order.ID, domain.StatusPending, domain.StatusConfirmed, base); err != nil {
			return err
		}
		from := domain.StatusPending
		if err := history.Record(ctx, &domain.StatusHistoryEntry{
			OrderID: order.ID, FromStatus: &from, ToStatus: domain.StatusConfirmed,
			ChangedBy: domain.RoleRestaurant, Timestamp: base,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, found.Status)

	entries, err := history.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStaleQueries(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepository(store)
	ctx := context.Background()

	old := newOrder(t, "ORD-OLD", base.Add(-time.Hour))
	fresh := newOrder(t, "ORD-NEW", base)
	require.NoError(t, orders.Create(ctx, old, domain.RoleCustomer))
	require.NoError(t, orders.Create(ctx, fresh, domain.RoleCustomer))

	found, err := orders.FindByStatusCreatedBefore(ctx, domain.StatusPending, base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ORD-OLD", found[0].Number)

	found, err = orders.FindByStatusUpdatedBefore(ctx, domain.StatusDelivered, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, found)
}
