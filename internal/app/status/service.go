package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

const notifyTimeout = 5 * time.Second

type Service struct {
	orders   interfaces.OrderRepository
	history  interfaces.HistoryRepository
	tx       interfaces.TxManager
	notifier interfaces.Notifier
	logger   logger.Logger
	tracer   trace.Tracer
	now      func() time.Time

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

type Option func(*Service)

// WithClock replaces time.Now as the source of transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the engine. notifier may be nil.
func NewService(
	orders interfaces.OrderRepository,
	history interfaces.HistoryRepository,
	tx interfaces.TxManager,
	notifier interfaces.Notifier,
	logger logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		orders:   orders,
		history:  history,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("github.com/YelzhanWeb/orderflow/internal/app/status"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ interfaces.StatusService = (*Service)(nil)

// UpdateOrderStatus is the only path that changes an order's status.
// Every failure is a *domain.Failure.
func (s *Service) UpdateOrderStatus(ctx context.Context, cmd interfaces.UpdateStatusCommand) (*interfaces.UpdateStatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "status.UpdateOrderStatus", trace.WithAttributes(
		attribute.Int64("order.id", cmd.OrderID),
		attribute.String("order.status.requested", string(cmd.NewStatus)),
		attribute.String("actor.role", string(cmd.ActorRole)),
	))
	defer span.End()

	result, err := s.updateOrderStatus(ctx, cmd)
	s.logDecision(ctx, cmd, result, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("order.status.previous", string(result.FromStatus)))
	return result, nil
}

func (s *Service) updateOrderStatus(ctx context.Context, cmd interfaces.UpdateStatusCommand) (*interfaces.UpdateStatusResult, error) {
	// 1. Входные данные
	if !cmd.NewStatus.IsValid() {
		return nil, domain.NewFailure(domain.KindInvalidStatus, fmt.Sprintf("unknown order status %q", cmd.NewStatus), nil)
	}
	if !cmd.ActorRole.IsValid() {
		return nil, domain.NewFailure(domain.KindInvalidRole, fmt.Sprintf("unknown actor role %q", cmd.ActorRole), nil)
	}

	// 2. Текущее состояние заказа
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, s.storeFailure(cmd.OrderID, "load order", err)
	}
	from := order.Status
	now := nextTimestamp(s.now(), order.UpdatedAt)

	// 3. Граф + права роли
	if err := order.TransitionTo(cmd.ActorRole, cmd.NewStatus, now); err != nil {
		return nil, err
	}

	// 4. Статус и запись в истории атомарно
	entry := &domain.StatusHistoryEntry{
		OrderID:     order.ID,
		FromStatus:  &from,
		ToStatus:    order.Status,
		ChangedBy:   cmd.ActorRole,
		ChangedByID: cmd.ActorID,
		Reason:      cmd.Reason,
		Notes:       cmd.Notes,
		Timestamp:   now,
	}
	err = s.tx.Execute(ctx, func(ctx context.Context) error {
		if err := s.orders.UpdateStatus(ctx, order.ID, from, order.Status, now); err != nil {
			return err
		}
		return s.history.Record(ctx, entry)
	})
	if err != nil {
		return nil, s.storeFailure(cmd.OrderID, "commit transition", err)
	}

	// 5. Уведомление не влияет на результат
	s.notify(ctx, *order, from, order.Status, cmd.ActorRole)

	return &interfaces.UpdateStatusResult{
		Order:      order,
		FromStatus: from,
		Message:    confirmationMessage(order.ID, from, order.Status),
	}, nil
}

func (s *Service) storeFailure(orderID int64, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return domain.NewFailure(domain.KindOrderNotFound, fmt.Sprintf("order %d not found", orderID), err)
	case errors.Is(err, domain.ErrStatusMismatch):
		return domain.NewFailure(domain.KindConflict,
			fmt.Sprintf("order %d was changed by another request, reload and retry", orderID), err)
	default:
		return domain.NewFailure(domain.KindStoreFailure, fmt.Sprintf("failed to %s for order %d", op, orderID), err)
	}
}

// nextTimestamp keeps an order's timestamps increasing across writers with skewed clocks.
// The compare-and-set write serializes transitions, so the stored updated_at is the
// previous transition's time. Microsecond precision matches Postgres timestamptz.
func nextTimestamp(now, last time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if now.After(last) {
		return now
	}
	return last.Truncate(time.Microsecond).Add(time.Microsecond)
}

func confirmationMessage(orderID int64, from, to domain.Status) string {
	fromInfo, _ := domain.Info(from)
	toInfo, _ := domain.Info(to)
	return fmt.Sprintf("Order %d moved from %s to %s", orderID, fromInfo.Label, toInfo.Label)
}

// notify runs the notifier in the background with its own deadline.
func (s *Service) notify(ctx context.Context, order domain.Order, from, to domain.Status, role domain.Role) {
	if s.notifier == nil {
		return
	}

	requestID := logger.RequestIDFrom(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("notification_skipped", "Service is closing, status update not published", requestID,
			map[string]interface{}{"order_id": order.ID, "new_status": to})
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer s.pending.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification_panic", "Notifier panicked", requestID,
					map[string]interface{}{"order_id": order.ID}, fmt.Errorf("%v", r))
			}
		}()

		if err := s.notifier.Notify(ctx, order, from, to, role); err != nil {
			s.logger.Error("notification_failed", "Failed to publish status update", requestID,
				map[string]interface{}{"order_id": order.ID, "new_status": to}, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Close stops dispatching notifications and waits for the in-flight ones.
// Transitions still commit after Close.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
}

func (s *Service) logDecision(ctx context.Context, cmd interfaces.UpdateStatusCommand, result *interfaces.UpdateStatusResult, err error) {
	details := map[string]interface{}{
		"order_id":   cmd.OrderID,
		"to_status":  cmd.NewStatus,
		"actor_role": cmd.ActorRole,
	}
	if cmd.ActorID != nil {
		details["actor_id"] = *cmd.ActorID
	}
	requestID := logger.RequestIDFrom(ctx)

	if err == nil {
		details["from_status"] = result.FromStatus
		details["outcome"] = "committed"
		s.logger.Info("status_transition", result.Message, requestID, details)
		return
	}

	kind := domain.KindOf(err)
	details["outcome"] = "rejected"
	details["kind"] = kind
	if kind == domain.KindStoreFailure {
		s.logger.Error("status_transition", "Status transition failed", requestID, details, err)
		return
	}
	s.logger.Info("status_transition", err.Error(), requestID, details)
}

// GetOrderStatusHistory returns the audit trail of an order, oldest first.
func (s *Service) GetOrderStatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusHistoryEntry, error) {
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, s.storeFailure(orderID, "load order", err)
	}

	entries, err := s.history.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.storeFailure(orderID, "load history", err)
	}
	return entries, nil
}

func (s *Service) GetAvailableTransitions(current domain.Status, role domain.Role) []domain.Status {
	return domain.AvailableTransitions(current, role)
}

// GetOrderStatus returns the tracking view of an order. role may be empty.
func (s *Service) GetOrderStatus(ctx context.Context, orderID int64, role domain.Role) (*interfaces.TrackingOrderResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, s.storeFailure(orderID, "load order", err)
	}

	info, _ := domain.Info(order.Status)
	resp := &interfaces.TrackingOrderResponse{
		OrderID:              order.ID,
		OrderNumber:          order.Number,
		CurrentStatus:        order.Status,
		Info:                 info,
		UpdatedAt:            order.UpdatedAt,
		AvailableTransitions: []domain.Status{},
	}
	if role != "" {
		resp.AvailableTransitions = domain.AvailableTransitions(order.Status, role)
	}
	return resp, nil
}
