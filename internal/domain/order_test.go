package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_ComputesTotal(t *testing.T) {
	req := CreateOrderRequest{
		TableID: "T3",
		UserID:  7,
		Items: []OrderItem{
			{ItemID: 42, ItemName: "Soup", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
			{ItemID: 7, ItemName: "Bread", Quantity: 2, UnitPrice: decimal.RequireFromString("1.25")},
		},
	}

	order, err := NewOrder(req, time.Now())
	require.NoError(t, err)

	assert.Equal(t, OrderStatusCreated, order.Status)
	assert.True(t, decimal.RequireFromString("17.50").Equal(order.TotalAmount))

	req.Items[0].Quantity = 100
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	valid := []OrderItem{{ItemID: 1, ItemName: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}

	tests := []struct {
		name    string
		req     CreateOrderRequest
		message string
	}{
		{"missing user", CreateOrderRequest{TableID: "T1", Items: valid}, "userId"},
		{"missing table", CreateOrderRequest{UserID: 1, Items: valid}, "tableId"},
		{"no items", CreateOrderRequest{UserID: 1, TableID: "T1"}, "items"},
		{"zero price", CreateOrderRequest{UserID: 1, TableID: "T1", Items: []OrderItem{
			{ItemID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
			{ItemID: 9, Quantity: 1, UnitPrice: decimal.Zero},
		}}, "items[1] (itemId 9)"},
		{"zero quantity", CreateOrderRequest{UserID: 1, TableID: "T1", Items: []OrderItem{
			{ItemID: 5, Quantity: 0, UnitPrice: decimal.NewFromInt(1)},
		}}, "items[0] (itemId 5)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := &Order{ID: 3, TableID: "T1", UserID: 2, Status: OrderStatusReady, TotalAmount: decimal.NewFromInt(9)}
	now := time.Now()

	ev := NewOrderEvent(EventOrderStatusChanged, order, OrderStatusPreparing, now)

	assert.Equal(t, EventOrderStatusChanged, ev.EventType)
	assert.Equal(t, int64(3), ev.OrderID)
	assert.Equal(t, OrderStatusReady, ev.Status)
	assert.Equal(t, OrderStatusPreparing, ev.PreviousStatus)
	assert.Equal(t, now, ev.OccurredAt)
}

func TestOrder_SameOrder(t *testing.T) {
	req := CreateOrderRequest{
		TableID:   "T3",
		UserID:    7,
		Reference: "ORD-abc.2",
		Items: []OrderItem{
			{ItemID: 42, ItemName: "Soup", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
	order, err := NewOrder(req, time.Now())
	require.NoError(t, err)

	same := req
	same.Items = []OrderItem{{ItemID: 42, ItemName: "Soup", Quantity: 3, UnitPrice: decimal.RequireFromString("5")}}
	assert.True(t, order.SameOrder(same))

	more := req
	more.Items = append([]OrderItem{}, req.Items...)
	more.Items = append(more.Items, OrderItem{ItemID: 99, ItemName: "Tea", Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")})
	assert.False(t, order.SameOrder(more))

	quantity := req
	quantity.Items = []OrderItem{{ItemID: 42, ItemName: "Soup", Quantity: 4, UnitPrice: decimal.RequireFromString("5.00")}}
	assert.False(t, order.SameOrder(quantity))

	otherTable := req
	otherTable.TableID = "T4"
	assert.False(t, order.SameOrder(otherTable))
}
