package service

import (
	"context"
	"sync"
	"testing"

	"github.com/fjod/tableside/internal/cartstore"
	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// MockOrderCreator implements OrderCreator for testing
type MockOrderCreator struct {
	mu         sync.Mutex
	Order      *domain.Order
	Err        error
	Block      chan struct{} // when set, CreateOrder waits on it or on ctx
	Calls      int
	LastReq    domain.CreateOrderRequest
	LastCaller Caller
}

func (m *MockOrderCreator) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, caller Caller) (*domain.Order, error) {
	m.mu.Lock()
	m.Calls++
	m.LastReq = req
	m.LastCaller = caller
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Order != nil {
		return m.Order, nil
	}
	order, err := domain.NewOrder(req, baseTime)
	if err != nil {
		return nil, err
	}
	order.ID = 1
	return order, nil
}

func (m *MockOrderCreator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockCartStore wraps a real store and injects failures
type MockCartStore struct {
	cartstore.CartStore
	LoadErr   error
	SaveErr   error
	DeleteErr error
}

func (m *MockCartStore) Load(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.CartStore.Load(ctx, key)
}

func (m *MockCartStore) Save(ctx context.Context, key domain.CartKey, cart *domain.Cart) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	return m.CartStore.Save(ctx, key, cart)
}

func (m *MockCartStore) Delete(ctx context.Context, key domain.CartKey) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	return m.CartStore.Delete(ctx, key)
}

// SlowSaveStore holds the first Save until Release is closed and fails it if
// the caller's context is gone by then
type SlowSaveStore struct {
	cartstore.CartStore
	Entered chan struct{}
	Release chan struct{}
	once    sync.Once
}

func (m *SlowSaveStore) Save(ctx context.Context, key domain.CartKey, cart *domain.Cart) error {
	first := false
	m.once.Do(func() { first = true })
	if first {
		close(m.Entered)
		<-m.Release
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return m.CartStore.Save(ctx, key, cart)
}

// ConflictingRepository reports a concurrent status change for the first Conflicts updates
type ConflictingRepository struct {
	repository.OrderRepository
	Conflicts int
	Updates   int
}

func (r *ConflictingRepository) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (*domain.Order, error) {
	r.Updates++
	if r.Updates <= r.Conflicts {
		return nil, repository.ErrStatusConflict
	}
	return r.OrderRepository.UpdateOrderStatus(ctx, id, from, to)
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func setupCartStore(t *testing.T) *cartstore.MemoryStore {
	store := cartstore.NewMemoryStore(0, 0)
	t.Cleanup(func() { store.Close() })
	return store
}

func setupRepository(t *testing.T) *repository.SQLRepository {
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return repo
}
