package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/logging"
	"github.com/fjod/tableside/internal/repository"
)

const maxStatusUpdateAttempts = 3

// OrderService is the order ledger: durable orders and their status lifecycle.
type OrderService struct {
	repo repository.OrderRepository
	now  func() time.Time
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{
		repo: repo,
		now:  time.Now,
	}
}

// CreateOrder validates and stores a new order in status CREATED. A request
// repeating an earlier one under the same reference returns the order created
// for it; a request with the same reference but different content fails with
// ErrReferenceConflict.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	order, err := domain.NewOrder(req, s.now())
	if err != nil {
		return nil, err
	}

	err = s.repo.CreateOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicateReference) {
		existing, errGet := s.repo.GetOrderByReference(ctx, req.Reference)
		if errGet != nil {
			return nil, fmt.Errorf("get order by reference %s: %w", req.Reference, errGet)
		}
		if !existing.SameOrder(req) {
			logging.FromCtx(ctx).Warn("order reference reused for different items", "reference", req.Reference, "order_id", existing.ID)
			return nil, fmt.Errorf("%w: %s", domain.ErrReferenceConflict, req.Reference)
		}
		logging.FromCtx(ctx).Info("order already exists for reference", "reference", req.Reference, "order_id", existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logging.FromCtx(ctx).Info("order created",
		"order_id", order.ID,
		"table_id", order.TableID,
		"user_id", order.UserID,
		"total", order.TotalAmount.String())
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get order %d", id)
	}
	return order, nil
}

// ListByTable returns the table's orders, newest first.
func (s *OrderService) ListByTable(ctx context.Context, tableID string) ([]*domain.Order, error) {
	if tableID == "" {
		return nil, fmt.Errorf("%w: tableId is required", domain.ErrValidation)
	}
	orders, err := s.repo.ListOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list orders for table %s: %w", tableID, err)
	}
	return orders, nil
}

// ListByUser returns the user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userId must be positive", domain.ErrValidation)
	}
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListActive returns orders the kitchen still has to work on, oldest first.
func (s *OrderService) ListActive(ctx context.Context) ([]*domain.Order, error) {
	orders, err := s.repo.ListOrdersByStatus(ctx, domain.ActiveOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus applies one lifecycle step. The check against the current status
// and the write are a single compare-and-set, so two racing updates cannot both
// move the order from the same status.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, to domain.OrderStatus) (*domain.Order, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, to)
	}

	var lastErr error
	for attempt := 1; attempt <= maxStatusUpdateAttempts; attempt++ {
		current, err := s.repo.GetOrderByID(ctx, id)
		if err != nil {
			return nil, mapRepoError(err, "get order %d", id)
		}
		if err := domain.ValidateTransition(current.Status, to); err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateOrderStatus(ctx, id, current.Status, to)
		if errors.Is(err, repository.ErrStatusConflict) {
			lastErr = err
			logging.FromCtx(ctx).Debug("status changed concurrently, retrying", "order_id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, mapRepoError(err, "update order %d status", id)
		}

		orderTransitions.WithLabelValues(string(current.Status), string(to)).Inc()
		logging.FromCtx(ctx).Info("order status updated", "order_id", id, "from", current.Status, "to", to)
		return updated, nil
	}
	return nil, fmt.Errorf("update order %d status: %w", id, lastErr)
}

func mapRepoError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
