package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeReplayed    = "replayed"
	outcomeInProgress  = "in_progress"
	outcomeEmptyCart   = "empty_cart"
	outcomeRejected    = "rejected"
	outcomeConflict    = "conflict"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

var (
	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Accepted order status transitions",
		},
		[]string{"from", "to"},
	)
)
