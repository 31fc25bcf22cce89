// Package sweeper advances orders that have been stuck in pending or delivered for too long.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/config"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

// Updater is the part of the status service the sweeper drives.
type Updater interface {
	UpdateOrderStatus(ctx context.Context, cmd interfaces.UpdateStatusCommand) (*interfaces.UpdateStatusResult, error)
}

type Service struct {
	orders           interfaces.OrderRepository
	updater          Updater
	logger           logger.Logger
	tracer           trace.Tracer
	interval         time.Duration
	pendingTimeout   time.Duration
	deliveredTimeout time.Duration
	now              func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	orders interfaces.OrderRepository,
	updater Updater,
	logger logger.Logger,
	cfg config.SweeperConfig,
	opts ...Option,
) *Service {
	s := &Service{
		orders:           orders,
		updater:          updater,
		logger:           logger,
		tracer:           otel.Tracer("github.com/YelzhanWeb/orderflow/internal/app/sweeper"),
		interval:         cfg.Interval,
		pendingTimeout:   cfg.PendingTimeout,
		deliveredTimeout: cfg.DeliveredTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ interfaces.SweeperService = (*Service)(nil)

// CancelExpiredOrders cancels pending orders older than the pending timeout.
// It returns how many orders were moved.
func (s *Service) CancelExpiredOrders(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.CancelExpiredOrders")
	defer span.End()

	cutoff := s.now().Add(-s.pendingTimeout)
	candidates, err := s.orders.FindByStatusCreatedBefore(ctx, domain.StatusPending, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, domain.NewFailure(domain.KindStoreFailure, "failed to list expired pending orders", err)
	}

	moved := s.advance(ctx, "expired_orders_cancelled", candidates, domain.StatusCancelled,
		"order expired unconfirmed",
		"auto-cancelled after "+humanDuration(s.pendingTimeout))
	span.SetAttributes(attribute.Int("sweeper.candidates", len(candidates)), attribute.Int("sweeper.moved", moved))
	return moved, ctx.Err()
}

// CompleteDeliveredOrders completes delivered orders untouched for the delivered timeout.
func (s *Service) CompleteDeliveredOrders(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.CompleteDeliveredOrders")
	defer span.End()

	cutoff := s.now().Add(-s.deliveredTimeout)
	candidates, err := s.orders.FindByStatusUpdatedBefore(ctx, domain.StatusDelivered, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, domain.NewFailure(domain.KindStoreFailure, "failed to list delivered orders", err)
	}

	moved := s.advance(ctx, "delivered_orders_completed", candidates, domain.StatusCompleted,
		"delivery not disputed",
		"auto-completed after "+humanDuration(s.deliveredTimeout))
	span.SetAttributes(attribute.Int("sweeper.candidates", len(candidates)), attribute.Int("sweeper.moved", moved))
	return moved, ctx.Err()
}

// advance moves each candidate through the status service as the system role.
// Orders another actor already moved are skipped.
func (s *Service) advance(ctx context.Context, action string, candidates []*domain.Order, to domain.Status, reason, notes string) int {
	moved := 0
	for _, order := range candidates {
		if ctx.Err() != nil {
			break
		}

		_, err := s.updater.UpdateOrderStatus(ctx, interfaces.UpdateStatusCommand{
			OrderID:   order.ID,
			NewStatus: to,
			ActorRole: domain.RoleSystem,
			Reason:    &reason,
			Notes:     &notes,
		})
		if err != nil {
			s.logger.Debug("sweep_order_skipped", fmt.Sprintf("Order %d skipped", order.ID), "",
				map[string]interface{}{"order_id": order.ID, "target": to, "kind": domain.KindOf(err), "error": err.Error()})
			continue
		}
		moved++
	}

	if len(candidates) > 0 {
		s.logger.Info(action, fmt.Sprintf("%d of %d orders moved to %s", moved, len(candidates), to), "",
			map[string]interface{}{"candidates": len(candidates), "moved": moved})
	}
	return moved
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("sweeper_started", "Expiry sweeper started", "", map[string]interface{}{
		"interval":          s.interval.String(),
		"pending_timeout":   s.pendingTimeout.String(),
		"delivered_timeout": s.deliveredTimeout.String(),
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("sweeper_stopped", "Expiry sweeper stopped", "", nil)
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	if _, err := s.CancelExpiredOrders(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweep_failed", "Failed to cancel expired orders", "", nil, err)
	}
	if _, err := s.CompleteDeliveredOrders(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweep_failed", "Failed to complete delivered orders", "", nil, err)
	}
}

// humanDuration spells whole hours and minutes out and falls back to Duration.String otherwise.
func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
