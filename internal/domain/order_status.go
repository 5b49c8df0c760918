package domain

import "strings"

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusServed    OrderStatus = "SERVED"
)

// transitions is the whole order lifecycle. A status missing from a set is denied.
var transitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusCreated:   {OrderStatusConfirmed: {}, OrderStatusPreparing: {}},
	OrderStatusConfirmed: {OrderStatusPreparing: {}},
	OrderStatusPreparing: {OrderStatusReady: {}},
	OrderStatusReady:     {OrderStatusServed: {}},
	OrderStatusServed:    {},
}

// AllOrderStatuses lists the lifecycle in order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusServed,
}

// ActiveOrderStatuses are the states of an order still waiting for the kitchen.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusConfirmed,
	OrderStatusPreparing,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", validationErrorf("unknown order status %q", s)
	}
	return status, nil
}

func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

func (s OrderStatus) IsActive() bool {
	for _, a := range ActiveOrderStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the table permits from -> to.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	_, ok := transitions[s][to]
	return ok
}

// ValidateTransition returns a *TransitionError when the change is not permitted.
func ValidateTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

func (s OrderStatus) String() string {
	return string(s)
}
