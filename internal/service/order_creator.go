package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/tableside/internal/domain"
)

// Caller is the already-resolved identity of whoever triggered checkout.
type Caller struct {
	UserID        int64
	TableID       string
	Authorization string
}

// OrderCreator creates the durable order for a checkout. Failures must wrap
// domain.ErrValidation when the request itself was rejected,
// domain.ErrReferenceConflict when the reference belongs to a different order
// and domain.ErrUnavailable when the order side could not answer.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest, caller Caller) (*domain.Order, error)
}

type OrderCreatorHandler struct {
	creator OrderCreator
	timeout time.Duration
}

func NewOrderCreatorHandler(creator OrderCreator, timeout time.Duration) *OrderCreatorHandler {
	return &OrderCreatorHandler{
		creator: creator,
		timeout: timeout,
	}
}

// LedgerOrderCreator calls the ledger in-process.
type LedgerOrderCreator struct {
	orders *OrderService
}

func NewLedgerOrderCreator(orders *OrderService) *LedgerOrderCreator {
	return &LedgerOrderCreator{orders: orders}
}

func (c *LedgerOrderCreator) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, _ Caller) (*domain.Order, error) {
	order, err := c.orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, classifyOrderError(err)
	}
	return order, nil
}

// classifyOrderError treats anything that is not a rejection as transient.
func classifyOrderError(err error) error {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnavailable) ||
		errors.Is(err, domain.ErrReferenceConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
