package cartstore

import (
	"context"
	"errors"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/logging"
)

// FallbackStore keeps carts usable while the primary backend is down by writing
// them to a local store instead. Carts parked locally are visible only to this
// instance and move back to the primary on their next successful Save.
type FallbackStore struct {
	primary  CartStore
	fallback CartStore
}

func NewFallbackStore(primary, fallback CartStore) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback}
}

func (s *FallbackStore) Load(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	cart, err := s.primary.Load(ctx, key)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		logging.FromCtx(ctx).Warn("primary cart store failed, reading fallback", "cart_key", key.String(), "error", err)
	}
	return s.fallback.Load(ctx, key)
}

func (s *FallbackStore) Save(ctx context.Context, key domain.CartKey, cart *domain.Cart) error {
	if err := s.primary.Save(ctx, key, cart); err != nil {
		logging.FromCtx(ctx).Warn("primary cart store failed, writing fallback", "cart_key", key.String(), "error", err)
		return s.fallback.Save(ctx, key, cart)
	}
	// drop any copy parked during an outage so it cannot shadow a later delete
	return s.fallback.Delete(ctx, key)
}

func (s *FallbackStore) Delete(ctx context.Context, key domain.CartKey) error {
	errPrimary := s.primary.Delete(ctx, key)
	if errPrimary != nil {
		logging.FromCtx(ctx).Warn("primary cart store delete failed", "cart_key", key.String(), "error", errPrimary)
	}
	if err := s.fallback.Delete(ctx, key); err != nil {
		return err
	}
	return errPrimary
}
