package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	timeout  time.Duration
}

func NewCartHandler(carts *service.CartService, checkout *service.CheckoutService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		checkout: checkout,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ExternalItemID int64            `json:"externalItemId"`
	ItemName       string           `json:"itemName"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	Quantity       int              `json:"quantity"`
	Note           *string          `json:"note"`
}

type UpdateItemRequestDTO struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note"`
}

type CartItemDTO struct {
	ExternalItemID int64           `json:"externalItemId"`
	ItemName       string          `json:"itemName"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Note           string          `json:"note,omitempty"`
	AddedAt        time.Time       `json:"addedAt"`
}

type CartResponseDTO struct {
	OrderID     string          `json:"orderId"`
	UserID      int64           `json:"userId"`
	TableID     string          `json:"tableId"`
	Status      string          `json:"status"`
	Items       []CartItemDTO   `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func convertItems(items []domain.CartItem) []CartItemDTO {
	dtos := make([]CartItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, CartItemDTO{
			ExternalItemID: item.ExternalItemID,
			ItemName:       item.ItemName,
			UnitPrice:      item.UnitPrice,
			Quantity:       item.Quantity,
			Subtotal:       item.Subtotal(),
			Note:           item.Note,
			AddedAt:        item.AddedAt,
		})
	}
	return dtos
}

func convertCart(c *domain.Cart) CartResponseDTO {
	return CartResponseDTO{
		OrderID:     c.OrderID,
		UserID:      c.UserID,
		TableID:     c.TableID,
		Status:      domain.CartStatusPending,
		Items:       convertItems(c.Items),
		TotalItems:  c.TotalItems(),
		TotalAmount: c.TotalAmount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// cartKey resolves the cart addressed by the identity headers.
func (h *CartHandler) cartKey(w http.ResponseWriter, r *http.Request) (domain.CartKey, bool) {
	id := identityFromContext(r.Context())
	if id.UserID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", HeaderUserID+" header is required")
		return domain.CartKey{}, false
	}
	return domain.NewCartKey(id.UserID, id.TableID), true
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "itemId must be a positive integer")
		return 0, false
	}
	return itemID, true
}

// POST /api/v1/cart/open
func (h *CartHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Open(ctx, key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// GET /api/v1/cart/items
func (h *CartHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertItems(cart.Items))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, key, domain.ItemInput{
		ExternalItemID: req.ExternalItemID,
		ItemName:       req.ItemName,
		UnitPrice:      req.UnitPrice,
		Quantity:       req.Quantity,
		Note:           req.Note,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// PUT /api/v1/cart/items/{itemId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItem(ctx, key, itemID, req.Quantity, req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// DELETE /api/v1/cart/items/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, key, itemID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(ctx, key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	summary, err := h.checkout.Checkout(ctx, service.CheckoutRequest{
		Key:            key,
		Authorization:  identityFromContext(r.Context()).Authorization,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
