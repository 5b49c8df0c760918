package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/tableside/internal/cartstore"
	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/idempotency"
	"github.com/fjod/tableside/internal/logging"
	"github.com/shopspring/decimal"
)

const (
	CheckoutStatusSent = "SENT"
	checkoutMessage    = "Order sent to order service"
	idempotencyScope   = "checkout"
	cleanupTimeout     = 2 * time.Second
)

type CheckoutRequest struct {
	Key            domain.CartKey
	Authorization  string
	IdempotencyKey string
}

type CheckoutItem struct {
	ItemID    int64           `json:"itemId"`
	ItemName  string          `json:"itemName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CheckoutSummary struct {
	OrderID       string             `json:"orderId"`
	LedgerOrderID int64              `json:"ledgerOrderId"`
	UserID        int64              `json:"userId"`
	TableID       string             `json:"tableId"`
	Status        string             `json:"status"`
	OrderStatus   domain.OrderStatus `json:"orderStatus"`
	Items         []CheckoutItem     `json:"items"`
	TotalAmount   decimal.Decimal    `json:"totalAmount"`
	ConfirmedAt   time.Time          `json:"confirmedAt"`
	Message       string             `json:"message"`
}

// CheckoutService turns a cart into an order. The cart is deleted only after the
// order side confirmed creation; every failure before that leaves it untouched.
// Nothing is retried here.
type CheckoutService struct {
	carts  cartstore.CartStore
	orders *OrderCreatorHandler
	idem   idempotency.Store // optional
	now    func() time.Time
}

func NewCheckoutService(carts cartstore.CartStore, orders *OrderCreatorHandler, idem idempotency.Store) *CheckoutService {
	return &CheckoutService{
		carts:  carts,
		orders: orders,
		idem:   idem,
		now:    time.Now,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutSummary, error) {
	log := logging.FromCtx(ctx).With("cart_key", req.Key.String())

	scope := idempotencyScope + ":" + req.Key.String()
	useIdem := s.idem != nil && req.IdempotencyKey != ""
	if useIdem {
		if prev, ok := s.recall(ctx, log, scope, req.IdempotencyKey); ok {
			checkoutTotal.WithLabelValues(outcomeReplayed).Inc()
			return prev, nil
		}

		locked, err := s.idem.TryLock(ctx, scope, req.IdempotencyKey)
		switch {
		case err != nil:
			log.Warn("idempotency lock failed, continuing without it", "error", err)
			useIdem = false
		case !locked:
			checkoutTotal.WithLabelValues(outcomeInProgress).Inc()
			return nil, domain.ErrCheckoutInProgress
		}
	}

	summary, err := s.checkout(ctx, log, req)

	if useIdem {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err != nil {
			if errRelease := s.idem.Release(cleanupCtx, scope, req.IdempotencyKey); errRelease != nil {
				log.Warn("idempotency release failed", "error", errRelease)
			}
		} else {
			s.remember(cleanupCtx, log, scope, req.IdempotencyKey, summary)
		}
	}
	return summary, err
}

func (s *CheckoutService) checkout(ctx context.Context, log *slog.Logger, req CheckoutRequest) (*CheckoutSummary, error) {
	cart, err := s.carts.Load(ctx, req.Key)
	if errors.Is(err, cartstore.ErrCartNotFound) || (err == nil && cart.IsEmpty()) {
		checkoutTotal.WithLabelValues(outcomeEmptyCart).Inc()
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		checkoutTotal.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("load cart %s: %w", req.Key, err)
	}

	items, err := buildOrderItems(cart)
	if err != nil {
		checkoutTotal.WithLabelValues(outcomeRejected).Inc()
		return nil, err
	}

	orderReq := domain.CreateOrderRequest{
		TableID:   cart.TableID,
		UserID:    cart.UserID,
		Reference: cart.OrderReference(),
		Items:     items,
	}
	caller := Caller{
		UserID:        req.Key.UserID,
		TableID:       req.Key.TableID,
		Authorization: req.Authorization,
	}

	order, err := s.createOrder(ctx, orderReq, caller)
	if err != nil {
		if errors.Is(err, domain.ErrReferenceConflict) {
			checkoutTotal.WithLabelValues(outcomeConflict).Inc()
			s.moveToNewRevision(ctx, log, req.Key, cart)
			return nil, err
		}
		if errors.Is(err, domain.ErrValidation) {
			checkoutTotal.WithLabelValues(outcomeRejected).Inc()
			log.Warn("order rejected, cart kept", "order_id", cart.OrderID, "error", err)
		} else {
			checkoutTotal.WithLabelValues(outcomeUnavailable).Inc()
			log.Warn("order service unavailable, cart kept", "order_id", cart.OrderID, "error", err)
		}
		return nil, err
	}

	// the order is durable from here on; a failed delete only leaves a stale cart behind
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.carts.Delete(delCtx, req.Key); err != nil {
		log.Error("cart delete after checkout failed", "order_id", cart.OrderID, "ledger_order_id", order.ID, "error", err)
	}

	checkoutTotal.WithLabelValues(outcomeSuccess).Inc()
	log.Info("checkout completed", "order_id", cart.OrderID, "ledger_order_id", order.ID, "total", order.TotalAmount.String())
	return newCheckoutSummary(cart, order, s.now()), nil
}

// moveToNewRevision keeps a cart whose reference already names another order,
// so the next checkout of it creates a new order.
func (s *CheckoutService) moveToNewRevision(ctx context.Context, log *slog.Logger, key domain.CartKey, cart *domain.Cart) {
	stale := cart.OrderReference()
	cart.Recalculate(s.now())
	if err := s.carts.Save(ctx, key, cart); err != nil {
		log.Error("cart revision bump failed", "reference", stale, "error", err)
		return
	}
	log.Warn("order reference already used for a different order, cart kept", "reference", stale, "next_reference", cart.OrderReference())
}

func (s *CheckoutService) createOrder(ctx context.Context, req domain.CreateOrderRequest, caller Caller) (*domain.Order, error) {
	orderCtx, cancel := context.WithTimeout(ctx, s.orders.timeout)
	defer cancel()

	order, err := s.orders.creator.CreateOrder(orderCtx, req, caller)
	if err != nil {
		return nil, classifyOrderError(err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: empty response from order service", domain.ErrUnavailable)
	}
	return order, nil
}

func (s *CheckoutService) recall(ctx context.Context, log *slog.Logger, scope, key string) (*CheckoutSummary, bool) {
	raw, found, err := s.idem.Recall(ctx, scope, key)
	if err != nil {
		log.Warn("idempotency recall failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var summary CheckoutSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		log.Warn("stored checkout summary is unreadable", "error", err)
		return nil, false
	}
	return &summary, true
}

func (s *CheckoutService) remember(ctx context.Context, log *slog.Logger, scope, key string, summary *CheckoutSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Warn("marshal checkout summary failed", "error", err)
		return
	}
	if err := s.idem.Remember(ctx, scope, key, string(raw)); err != nil {
		log.Warn("idempotency remember failed", "error", err)
	}
}

// buildOrderItems re-checks what the cart should already guarantee.
func buildOrderItems(cart *domain.Cart) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.OrderItem{
			ItemID:    item.ExternalItemID,
			ItemName:  item.ItemName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := domain.ValidateOrderItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

func newCheckoutSummary(cart *domain.Cart, order *domain.Order, now time.Time) *CheckoutSummary {
	items := make([]CheckoutItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, CheckoutItem{
			ItemID:    item.ItemID,
			ItemName:  item.ItemName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}

	return &CheckoutSummary{
		OrderID:       cart.OrderID,
		LedgerOrderID: order.ID,
		UserID:        cart.UserID,
		TableID:       cart.TableID,
		Status:        CheckoutStatusSent,
		OrderStatus:   order.Status,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		ConfirmedAt:   now,
		Message:       checkoutMessage,
	}
}
