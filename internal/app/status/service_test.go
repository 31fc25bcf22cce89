package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/adapter/memory"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

// --- Fakes ---

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type notification struct {
	order    domain.Order
	from, to domain.Status
	role     domain.Role
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, order domain.Order, from, to domain.Status, role domain.Role) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{order, from, to, role})
	return n.err
}

func (n *recordingNotifier) Calls() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

type failingHistory struct {
	interfaces.HistoryRepository
	recordErr error
	listErr   error
}

func (h *failingHistory) Record(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	return h.HistoryRepository.Record(ctx, entry)
}

func (h *failingHistory) ListByOrder(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.HistoryRepository.ListByOrder(ctx, orderID)
}

// racingOrders lets another writer move the order right after the engine read it.
type racingOrders struct {
	interfaces.OrderRepository
	afterFind func()
	findErr   error
}

func (r *racingOrders) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	order, err := r.OrderRepository.FindByID(ctx, id)
	if r.afterFind != nil {
		r.afterFind()
	}
	return order, err
}

type fixture struct {
	store    *memory.Store
	orders   interfaces.OrderRepository
	history  interfaces.HistoryRepository
	notifier *recordingNotifier
	clock    *stepClock
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		orders:   memory.NewOrderRepository(store),
		history:  memory.NewHistoryRepository(store),
		notifier: &recordingNotifier{},
		clock:    &stepClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(f.orders, f.history, memory.NewTxManager(store), f.notifier, logger.Nop(), WithClock(f.clock.Now))
	return f
}

// seed creates an order and walks it to status using admin transitions along the graph.
func (f *fixture) seed(t *testing.T, status domain.Status) *domain.Order {
	t.Helper()
	ctx := context.Background()

	order, err := domain.NewOrder("ORD-"+string(status), 10, 20, 42, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.orders.Create(ctx, order, domain.RoleCustomer))

	for _, step := range pathTo(status) {
		_, err := f.svc.UpdateOrderStatus(ctx, interfaces.UpdateStatusCommand{
			OrderID: order.ID, NewStatus: step, ActorRole: domain.RoleAdmin,
		})
		require.NoError(t, err)
	}
	f.svc.Wait()

	found, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, status, found.Status)
	return found
}

func pathTo(target domain.Status) []domain.Status {
	paths := map[domain.Status][]domain.Status{
		domain.StatusPending:    {},
		domain.StatusConfirmed:  {domain.StatusConfirmed},
		domain.StatusDelivering: {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReadyForPickup, domain.StatusPickedUp, domain.StatusDelivering},
		domain.StatusDelivered:  {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReadyForPickup, domain.StatusPickedUp, domain.StatusDelivering, domain.StatusDelivered},
		domain.StatusCompleted:  {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReadyForPickup, domain.StatusPickedUp, domain.StatusDelivering, domain.StatusDelivered, domain.StatusCompleted},
		domain.StatusRefunded:   {domain.StatusCancelled, domain.StatusRefunded},
	}
	return paths[target]
}

func strPtr(s string) *string { return &s }
func idPtr(id int64) *int64   { return &id }

// --- Tests ---

func TestCustomerCancelsPendingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)
	ctx := context.Background()

	res, err := f.svc.UpdateOrderStatus(ctx, interfaces.UpdateStatusCommand{
		OrderID:   order.ID,
		NewStatus: domain.StatusCancelled,
		ActorRole: domain.RoleCustomer,
		ActorID:   idPtr(10),
		Reason:    strPtr("changed my mind"),
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	assert.Equal(t, domain.StatusPending, res.FromStatus)
	assert.Contains(t, res.Message, "Pending")
	assert.Contains(t, res.Message, "Cancelled")

	entries, err := f.svc.GetOrderStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	last := entries[1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, domain.StatusPending, *last.FromStatus)
	assert.Equal(t, domain.StatusCancelled, last.ToStatus)
	assert.Equal(t, domain.RoleCustomer, last.ChangedBy)
	assert.Equal(t, int64(10), *last.ChangedByID)
	assert.Equal(t, "changed my mind", *last.Reason)
	assert.Nil(t, last.Notes)

	calls := f.notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.StatusPending, calls[0].from)
	assert.Equal(t, domain.StatusCancelled, calls[0].to)
	assert.Equal(t, domain.RoleCustomer, calls[0].role)
}

func TestDeniedTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Status
		target  domain.Status
		role    domain.Role
		reason  string
	}{
		{"driver cannot confirm pending", domain.StatusPending, domain.StatusConfirmed, domain.RoleDriver, "permission denied"},
		{"restaurant cannot skip to delivered", domain.StatusConfirmed, domain.StatusDelivered, domain.RoleRestaurant, "not a valid transition"},
		{"admin cannot leave completed", domain.StatusCompleted, domain.StatusRefunded, domain.RoleAdmin, "not a valid transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.seed(t, tt.current)
			before, err := f.svc.GetOrderStatusHistory(context.Background(), order.ID)
			require.NoError(t, err)

			_, err = f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
				OrderID: order.ID, NewStatus: tt.target, ActorRole: tt.role,
			})
			require.Error(t, err)
			assert.Equal(t, domain.KindTransitionDenied, domain.KindOf(err))
			assert.Contains(t, err.Error(), string(tt.current)+" -> "+string(tt.target))
			assert.Contains(t, err.Error(), string(tt.role))
			assert.Contains(t, err.Error(), tt.reason)

			after, err := f.svc.GetOrderStatusHistory(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Len(t, after, len(before))

			found, err := f.orders.FindByID(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.current, found.Status)
		})
	}
}

func TestAdminBypassesMatrixWithinGraph(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusDelivering)

	res, err := f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusDelivered, ActorRole: domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, res.Order.Status)
}

func TestSameStatusIsRejectedForEveryRole(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusConfirmed)

	for _, role := range domain.AllRoles() {
		_, err := f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
			OrderID: order.ID, NewStatus: domain.StatusConfirmed, ActorRole: role,
		})
		assert.Equal(t, domain.KindStatusUnchanged, domain.KindOf(err), "role %s", role)
	}

	entries, err := f.svc.GetOrderStatusHistory(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)

	_, err := f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: "shipped", ActorRole: domain.RoleAdmin,
	})
	assert.Equal(t, domain.KindInvalidStatus, domain.KindOf(err))

	_, err = f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusCancelled, ActorRole: "courier",
	})
	assert.Equal(t, domain.KindInvalidRole, domain.KindOf(err))

	_, err = f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: 404, NewStatus: domain.StatusCancelled, ActorRole: domain.RoleAdmin,
	})
	assert.Equal(t, domain.KindOrderNotFound, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.svc.GetOrderStatusHistory(context.Background(), 404)
	assert.Equal(t, domain.KindOrderNotFound, domain.KindOf(err))
}

func TestHistoryReconstructsPath(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusCompleted)

	entries, err := f.svc.GetOrderStatusHistory(context.Background(), order.ID)
	require.NoError(t, err)

	path := pathTo(domain.StatusCompleted)
	require.Len(t, entries, len(path)+1)

	assert.Nil(t, entries[0].FromStatus)
	assert.Equal(t, domain.StatusPending, entries[0].ToStatus)

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "entry %d not after %d", i, i-1)
		require.NotNil(t, entries[i].FromStatus)
		assert.Equal(t, entries[i-1].ToStatus, *entries[i].FromStatus)
		assert.Equal(t, path[i-1], entries[i].ToStatus)
	}
	assert.Equal(t, order.Status, entries[len(entries)-1].ToStatus)
}

func TestConcurrentWriterWinsWithConflict(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)

	racing := &racingOrders{OrderRepository: f.orders}
	racing.afterFind = func() {
		racing.afterFind = nil
		require.NoError(t, f.orders.UpdateStatus(context.Background(), order.ID,
			domain.StatusPending, domain.StatusConfirmed, time.Now()))
	}
	svc := NewService(racing, f.history, memory.NewTxManager(f.store), f.notifier, logger.Nop(), WithClock(f.clock.Now))

	_, err := svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusCancelled, ActorRole: domain.RoleCustomer,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrStatusMismatch)

	found, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, found.Status)

	svc.Wait()
	assert.Empty(t, f.notifier.Calls())
}

func TestHistoryFailureRollsBackStatus(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)

	boom := errors.New("disk full")
	history := &failingHistory{HistoryRepository: f.history, recordErr: boom}
	svc := NewService(f.orders, history, memory.NewTxManager(f.store), f.notifier, logger.Nop(), WithClock(f.clock.Now))

	_, err := svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusConfirmed, ActorRole: domain.RoleRestaurant,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
	assert.ErrorIs(t, err, boom)

	found, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, found.Status)

	history.listErr = boom
	_, err = svc.GetOrderStatusHistory(context.Background(), order.ID)
	assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
}

func TestLoadFailureIsStoreFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	svc := NewService(&racingOrders{OrderRepository: f.orders, findErr: boom}, f.history,
		memory.NewTxManager(f.store), nil, logger.Nop())

	_, err := svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: 1, NewStatus: domain.StatusConfirmed, ActorRole: domain.RoleRestaurant,
	})
	assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestNotifierFailureKeepsTransition(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)
	f.notifier.err = errors.New("broker down")

	res, err := f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusConfirmed, ActorRole: domain.RoleRestaurant,
	})
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, domain.StatusConfirmed, res.Order.Status)

	found, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, found.Status)
}

type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) Notify(ctx context.Context, order domain.Order, from, to domain.Status, role domain.Role) error {
	<-n.release
	return nil
}

func TestSlowNotifierDoesNotDelayCommit(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)

	slow := &blockingNotifier{release: make(chan struct{})}
	svc := NewService(f.orders, f.history, memory.NewTxManager(f.store), slow, logger.Nop(), WithClock(f.clock.Now))

	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
			OrderID: order.ID, NewStatus: domain.StatusConfirmed, ActorRole: domain.RoleRestaurant,
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("status update waited for the notifier")
	}

	close(slow.release)
	svc.Wait()
}

func TestGetOrderStatus(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusDelivering)

	resp, err := f.svc.GetOrderStatus(context.Background(), order.ID, domain.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivering, resp.CurrentStatus)
	assert.Equal(t, "Delivering", resp.Info.Label)
	assert.Equal(t, []domain.Status{domain.StatusDelivered, domain.StatusDeliveryFailed}, resp.AvailableTransitions)

	resp, err = f.svc.GetOrderStatus(context.Background(), order.ID, "")
	require.NoError(t, err)
	assert.Empty(t, resp.AvailableTransitions)

	_, err = f.svc.GetOrderStatus(context.Background(), 404, domain.RoleDriver)
	assert.Equal(t, domain.KindOrderNotFound, domain.KindOf(err))

	assert.Equal(t, []domain.Status{domain.StatusCancelled},
		f.svc.GetAvailableTransitions(domain.StatusPending, domain.RoleCustomer))
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func TestHistoryStaysOrderedAcrossSkewedWriters(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	order, err := domain.NewOrder("ORD-SKEW", 10, 20, 42, base)
	require.NoError(t, err)
	require.NoError(t, f.orders.Create(context.Background(), order, domain.RoleCustomer))

	ahead := NewService(f.orders, f.history, memory.NewTxManager(f.store), nil, logger.Nop(),
		WithClock((&fixedClock{now: base.Add(10 * time.Second)}).Now))
	behind := NewService(f.orders, f.history, memory.NewTxManager(f.store), nil, logger.Nop(),
		WithClock((&fixedClock{now: base.Add(8 * time.Second)}).Now))

	steps := []struct {
		svc *Service
		to  domain.Status
	}{
		{ahead, domain.StatusConfirmed},
		{behind, domain.StatusPreparing},
		{behind, domain.StatusReadyForPickup},
	}
	for _, step := range steps {
		_, err := step.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
			OrderID: order.ID, NewStatus: step.to, ActorRole: domain.RoleRestaurant,
		})
		require.NoError(t, err)
	}

	entries, err := f.svc.GetOrderStatusHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "entry %d not after %d", i, i-1)
		require.NotNil(t, entries[i].FromStatus)
		assert.Equal(t, entries[i-1].ToStatus, *entries[i].FromStatus, "entry %d", i)
	}
	assert.Equal(t, domain.StatusReadyForPickup, entries[3].ToStatus)

	found, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entries[3].Timestamp, found.UpdatedAt)
}

func TestNextTimestamp(t *testing.T) {
	last := time.Date(2026, 5, 1, 12, 0, 0, 500, time.UTC)

	assert.Equal(t, last.Add(time.Second).Truncate(time.Microsecond), nextTimestamp(last.Add(time.Second), last))
	assert.Equal(t, last.Truncate(time.Microsecond).Add(time.Microsecond), nextTimestamp(last.Add(-time.Minute), last))
	assert.True(t, nextTimestamp(last, last).After(last))
}

func TestCloseStopsNewNotifications(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t, domain.StatusPending)
	before := len(f.notifier.Calls())

	f.svc.Close()

	res, err := f.svc.UpdateOrderStatus(context.Background(), interfaces.UpdateStatusCommand{
		OrderID: order.ID, NewStatus: domain.StatusConfirmed, ActorRole: domain.RoleRestaurant,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Order.Status)

	f.svc.Wait()
	assert.Len(t, f.notifier.Calls(), before)
}
