package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ItemID    int64           `json:"itemId"`
	ItemName  string          `json:"itemName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"reference,omitempty"`
	TableID     string          `json:"tableId"`
	UserID      int64           `json:"userId"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CreateOrderRequest is what the ledger needs to open an order. Reference is the
// cart correlation id when the order comes from a checkout.
type CreateOrderRequest struct {
	TableID   string      `json:"tableId"`
	UserID    int64       `json:"userId"`
	Reference string      `json:"reference,omitempty"`
	Items     []OrderItem `json:"items"`
}

func (r CreateOrderRequest) Validate() error {
	if r.UserID <= 0 {
		return validationErrorf("userId is required")
	}
	if r.TableID == "" {
		return validationErrorf("tableId is required")
	}
	return ValidateOrderItems(r.Items)
}

// ValidateOrderItems names the first offending item.
func ValidateOrderItems(items []OrderItem) error {
	if len(items) == 0 {
		return validationErrorf("items must not be empty")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return validationErrorf("items[%d] (itemId %d): quantity must be positive", i, item.ItemID)
		}
		if !item.UnitPrice.IsPositive() {
			return validationErrorf("items[%d] (itemId %d): unitPrice must be positive", i, item.ItemID)
		}
	}
	return nil
}

// SameOrder reports whether o was created from the same table, user and items as req.
func (o *Order) SameOrder(req CreateOrderRequest) bool {
	if o.TableID != req.TableID || o.UserID != req.UserID || len(o.Items) != len(req.Items) {
		return false
	}
	for i, item := range o.Items {
		other := req.Items[i]
		if item.ItemID != other.ItemID || item.ItemName != other.ItemName ||
			item.Quantity != other.Quantity || !item.UnitPrice.Equal(other.UnitPrice) {
			return false
		}
	}
	return true
}

func CalculateTotalAmount(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// NewOrder validates the request and builds a CREATED order. Items are copied.
func NewOrder(req CreateOrderRequest, now time.Time) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items := make([]OrderItem, len(req.Items))
	copy(items, req.Items)

	return &Order{
		Reference:   req.Reference,
		TableID:     req.TableID,
		UserID:      req.UserID,
		Status:      OrderStatusCreated,
		Items:       items,
		TotalAmount: CalculateTotalAmount(items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload written to the outbox and published to the broker.
type OrderEvent struct {
	EventType      string          `json:"eventType"`
	OrderID        int64           `json:"orderId"`
	Reference      string          `json:"reference,omitempty"`
	TableID        string          `json:"tableId"`
	UserID         int64           `json:"userId"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previousStatus,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

func NewOrderEvent(eventType string, order *Order, previous OrderStatus, now time.Time) OrderEvent {
	return OrderEvent{
		EventType:      eventType,
		OrderID:        order.ID,
		Reference:      order.Reference,
		TableID:        order.TableID,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount,
		OccurredAt:     now,
	}
}
