package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/tableside/internal/domain"
)

type memoryEntry struct {
	cart      *domain.Cart
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps carts in process memory. Contents are lost on restart and
// are not shared between instances.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewMemoryStore starts a sweep goroutine when both ttl and sweepInterval are positive.
// Expired entries are hidden from Load even before the sweep removes them.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		carts:       make(map[string]memoryEntry),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	if ttl > 0 && sweepInterval > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(sweepInterval)
	}
	return s
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.carts {
		if entry.expired(now) {
			delete(s.carts, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Load(_ context.Context, key domain.CartKey) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.carts[key.String()]
	if !ok || entry.expired(s.now()) {
		return nil, ErrCartNotFound
	}
	return entry.cart.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, key domain.CartKey, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{cart: cart.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.carts[key.String()] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key domain.CartKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, key.String())
	return nil
}

// Len counts entries including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	s.wg.Wait()
	return nil
}
