package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		TableID:   "T1",
		UserID:    7,
		Reference: "ORD-1",
		Items: []domain.OrderItem{
			{ItemID: 42, ItemName: "Soup", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}

func TestOrdersClient_CreateOrder(t *testing.T) {
	var gotHeaders http.Header
	var gotBody domain.CreateOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		order, err := domain.NewOrder(gotBody, time.Now())
		require.NoError(t, err)
		order.ID = 11
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(order)
	}))
	defer srv.Close()

	c := NewOrdersClient(srv.URL+"/", time.Second)
	order, err := c.CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7, TableID: "T1", Authorization: "Bearer abc"})
	require.NoError(t, err)

	assert.Equal(t, int64(11), order.ID)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.True(t, decimal.RequireFromString("15").Equal(order.TotalAmount))

	assert.Equal(t, "7", gotHeaders.Get("X-User-Id"))
	assert.Equal(t, "T1", gotHeaders.Get("X-Table-Id"))
	assert.Equal(t, "Bearer abc", gotHeaders.Get("Authorization"))
	assert.Equal(t, "ORD-1", gotBody.Reference)
}

func TestOrdersClient_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, domain.ErrValidation},
		{"conflict", http.StatusConflict, domain.ErrValidation},
		{"throttled", http.StatusTooManyRequests, domain.ErrUnavailable},
		{"server error", http.StatusInternalServerError, domain.ErrUnavailable},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "items[0]: quantity must be positive", "code": "invalid_argument"})
			}))
			defer srv.Close()

			_, err := NewOrdersClient(srv.URL, time.Second).CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "quantity must be positive")
		})
	}
}

func TestOrdersClient_ReferenceConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "order reference already used for different items: ORD-1", "code": "reference_conflict"})
	}))
	defer srv.Close()

	_, err := NewOrdersClient(srv.URL, time.Second).CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7})
	assert.ErrorIs(t, err, domain.ErrReferenceConflict)
	assert.NotErrorIs(t, err, domain.ErrValidation)
}

func TestOrdersClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewOrdersClient(srv.URL, 50*time.Millisecond).CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestOrdersClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOrdersClient(url, time.Second).CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestOrdersClient_GarbledSuccessIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewOrdersClient(srv.URL, time.Second).CreateOrder(context.Background(), newRequest(), service.Caller{UserID: 7})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
