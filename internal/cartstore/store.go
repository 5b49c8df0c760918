package cartstore

import (
	"context"
	"errors"

	"github.com/fjod/tableside/internal/domain"
)

// CartStore persists whole cart snapshots. Save overwrites, Delete is idempotent,
// and Load returns ErrCartNotFound for both missing and expired entries.
// Nothing here serialises concurrent writers: the last Save wins.
type CartStore interface {
	Load(ctx context.Context, key domain.CartKey) (*domain.Cart, error)
	Save(ctx context.Context, key domain.CartKey, cart *domain.Cart) error
	Delete(ctx context.Context, key domain.CartKey) error
}

var ErrCartNotFound = errors.New("cart not found")

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeMongo  = "mongo"
)
