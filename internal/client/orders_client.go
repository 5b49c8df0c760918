package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const createOrderPath = "/api/v1/orders"

// OrdersClient creates orders on a remote orders service.
type OrdersClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOrdersClient(baseURL string, timeout time.Duration) *OrdersClient {
	return &OrdersClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// referenceConflictCode is the error code the orders service answers with when
// a reference already names a different order.
const referenceConflictCode = "reference_conflict"

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *OrdersClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, caller service.Caller) (*domain.Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createOrderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-Id", strconv.FormatInt(caller.UserID, 10))
	if caller.TableID != "" {
		httpReq.Header.Set("X-Table-Id", caller.TableID)
	}
	if caller.Authorization != "" {
		httpReq.Header.Set("Authorization", caller.Authorization)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var order domain.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			return nil, fmt.Errorf("%w: decode order: %v", domain.ErrUnavailable, err)
		}
		return &order, nil
	}
	return nil, classifyStatus(resp.StatusCode, raw)
}

// classifyStatus maps a non-success answer: the caller can fix a 4xx, except
// for throttling and request timeouts which are worth retrying.
func classifyStatus(status int, raw []byte) error {
	msg := http.StatusText(status)
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}

	switch {
	case status == http.StatusConflict && eb.Code == referenceConflictCode:
		return fmt.Errorf("%w: %s", domain.ErrReferenceConflict, msg)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: orders service answered %d: %s", domain.ErrUnavailable, status, msg)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: orders service rejected the order (%d): %s", domain.ErrValidation, status, msg)
	default:
		return fmt.Errorf("%w: orders service answered %d: %s", domain.ErrUnavailable, status, msg)
	}
}
