package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/tableside/internal/cartstore"
	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/logging"
	"golang.org/x/sync/singleflight"
)

const createCartTimeout = 5 * time.Second

// CartService applies one mutation per call: load, change, recalculate, save.
// Concurrent mutations of the same key are last-write-wins.
type CartService struct {
	store cartstore.CartStore
	sfg   singleflight.Group // one create for concurrent opens of an absent cart
	now   func() time.Time
}

func NewCartService(store cartstore.CartStore) *CartService {
	return &CartService{
		store: store,
		now:   time.Now,
	}
}

// Open returns the pending cart for key, creating and persisting an empty one if needed.
func (s *CartService) Open(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	cart, err := s.store.Load(ctx, key)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cartstore.ErrCartNotFound) {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	v, err, _ := s.sfg.Do(key.String(), func() (interface{}, error) {
		// the result is shared with callers that joined, so it must not die with this request
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createCartTimeout)
		defer cancel()

		// another caller may have finished creating it
		existing, err := s.store.Load(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, cartstore.ErrCartNotFound) {
			return nil, fmt.Errorf("load cart %s: %w", key, err)
		}

		created := domain.NewCart(key, s.now())
		if err := s.store.Save(ctx, key, created); err != nil {
			return nil, fmt.Errorf("save cart %s: %w", key, err)
		}
		logging.FromCtx(ctx).Debug("cart created", "cart_key", key.String(), "order_id", created.OrderID)
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart).Clone(), nil
}

// GetCart never reports a missing cart: an absent cart reads as a fresh empty one.
func (s *CartService) GetCart(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	return s.Open(ctx, key)
}

func (s *CartService) AddItem(ctx context.Context, key domain.CartKey, in domain.ItemInput) (*domain.Cart, error) {
	cart, err := s.store.Load(ctx, key)
	if errors.Is(err, cartstore.ErrCartNotFound) {
		cart = domain.NewCart(key, s.now())
	} else if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	if err := cart.AddItem(in, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, key, cart)
}

func (s *CartService) UpdateItem(ctx context.Context, key domain.CartKey, itemID int64, quantity *int, note *string) (*domain.Cart, error) {
	cart, err := s.loadExisting(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := cart.UpdateItem(itemID, quantity, note, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, key, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, key domain.CartKey, itemID int64) (*domain.Cart, error) {
	cart, err := s.loadExisting(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := cart.RemoveItem(itemID, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, key, cart)
}

// ClearCart replaces the cart with a fresh empty one under the same key.
func (s *CartService) ClearCart(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	return s.save(ctx, key, domain.NewCart(key, s.now()))
}

func (s *CartService) loadExisting(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	cart, err := s.store.Load(ctx, key)
	if errors.Is(err, cartstore.ErrCartNotFound) {
		return nil, fmt.Errorf("%w: cart %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, key domain.CartKey, cart *domain.Cart) (*domain.Cart, error) {
	if err := s.store.Save(ctx, key, cart); err != nil {
		return nil, fmt.Errorf("save cart %s: %w", key, err)
	}
	return cart, nil
}
