package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTableID keys carts opened without a table or session.
	DefaultTableID = "default"

	MaxNoteLength = 500

	CartStatusPending = "PENDING"
)

// CartKey identifies exactly one pending cart.
type CartKey struct {
	UserID  int64
	TableID string
}

func NewCartKey(userID int64, tableID string) CartKey {
	if tableID == "" {
		tableID = DefaultTableID
	}
	return CartKey{UserID: userID, TableID: tableID}
}

func (k CartKey) String() string {
	return fmt.Sprintf("cart:%d:%s", k.UserID, k.TableID)
}

type CartItem struct {
	ExternalItemID int64           `json:"externalItemId"`
	ItemName       string          `json:"itemName"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	Note           string          `json:"note,omitempty"`
	AddedAt        time.Time       `json:"addedAt"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemInput is an add request. A nil UnitPrice or Note means "not supplied".
type ItemInput struct {
	ExternalItemID int64
	ItemName       string
	UnitPrice      *decimal.Decimal
	Quantity       int
	Note           *string
}

type Cart struct {
	OrderID     string          `json:"orderId"`
	Revision    int             `json:"revision"`
	UserID      int64           `json:"userId"`
	TableID     string          `json:"tableId"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewCart returns an empty pending cart with a fresh correlation id.
func NewCart(key CartKey, now time.Time) *Cart {
	return &Cart{
		OrderID:     "ORD-" + uuid.NewString(),
		UserID:      key.UserID,
		TableID:     key.TableID,
		Items:       []CartItem{},
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c *Cart) Key() CartKey {
	return NewCartKey(c.UserID, c.TableID)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) TotalItems() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Recalculate must run after every mutation. It also moves the cart to a new
// revision, so a changed cart never reuses the order reference of an earlier checkout.
func (c *Cart) Recalculate(now time.Time) {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
	c.UpdatedAt = now
	c.Revision++
}

// OrderReference identifies the order for this exact revision of the cart.
func (c *Cart) OrderReference() string {
	return fmt.Sprintf("%s.%d", c.OrderID, c.Revision)
}

func (c *Cart) findItem(externalItemID int64) int {
	for i := range c.Items {
		if c.Items[i].ExternalItemID == externalItemID {
			return i
		}
	}
	return -1
}

// AddItem merges into an existing line with the same external id or appends a new one.
func (c *Cart) AddItem(in ItemInput, now time.Time) error {
	if in.ExternalItemID <= 0 {
		return validationErrorf("externalItemId must be positive")
	}
	if in.Quantity < 1 {
		return validationErrorf("quantity must be at least 1")
	}
	if in.UnitPrice != nil && !in.UnitPrice.IsPositive() {
		return validationErrorf("unitPrice must be positive")
	}
	if err := validateNote(in.Note); err != nil {
		return err
	}

	if idx := c.findItem(in.ExternalItemID); idx >= 0 {
		existing := &c.Items[idx]
		existing.Quantity += in.Quantity
		if in.Note != nil && *in.Note != "" {
			existing.Note = *in.Note
		}
		c.Recalculate(now)
		return nil
	}

	if in.UnitPrice == nil {
		return validationErrorf("unitPrice must be positive")
	}
	if in.ItemName == "" {
		return validationErrorf("itemName is required")
	}

	item := CartItem{
		ExternalItemID: in.ExternalItemID,
		ItemName:       in.ItemName,
		UnitPrice:      *in.UnitPrice,
		Quantity:       in.Quantity,
		AddedAt:        now,
	}
	if in.Note != nil {
		item.Note = *in.Note
	}
	c.Items = append(c.Items, item)
	c.Recalculate(now)
	return nil
}

// UpdateItem changes quantity and/or note of an existing line.
func (c *Cart) UpdateItem(externalItemID int64, quantity *int, note *string, now time.Time) error {
	idx := c.findItem(externalItemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %d is not in the cart", ErrNotFound, externalItemID)
	}
	if quantity != nil && *quantity < 1 {
		return validationErrorf("quantity must be at least 1")
	}
	if err := validateNote(note); err != nil {
		return err
	}

	if quantity != nil {
		c.Items[idx].Quantity = *quantity
	}
	if note != nil {
		c.Items[idx].Note = *note
	}
	c.Recalculate(now)
	return nil
}

func (c *Cart) RemoveItem(externalItemID int64, now time.Time) error {
	idx := c.findItem(externalItemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %d is not in the cart", ErrNotFound, externalItemID)
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.Recalculate(now)
	return nil
}

// Clone returns a deep copy, so stores never share item slices with callers.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

func validateNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > MaxNoteLength {
		return validationErrorf("note must be at most %d characters", MaxNoteLength)
	}
	return nil
}
