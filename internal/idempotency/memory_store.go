package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryValue struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the single-instance variant used when no Redis is configured.
// Expired keys are dropped lazily on access.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	values map[string]memoryValue
	now    func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		values: make(map[string]memoryValue),
		now:    time.Now,
	}
}

func (s *MemoryStore) get(k string) (memoryValue, bool) {
	v, ok := s.values[k]
	if !ok {
		return memoryValue{}, false
	}
	if !v.expiresAt.IsZero() && !s.now().Before(v.expiresAt) {
		delete(s.values, k)
		return memoryValue{}, false
	}
	return v, true
}

func (s *MemoryStore) set(k, value string) {
	v := memoryValue{value: value}
	if s.ttl > 0 {
		v.expiresAt = s.now().Add(s.ttl)
	}
	s.values[k] = v
}

func (s *MemoryStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey(scope, key)
	if _, ok := s.get(k); ok {
		return false, nil
	}
	s.set(k, "1")
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, lockKey(scope, key))
	return nil
}

func (s *MemoryStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(valueKey(scope, key), value)
	return nil
}

func (s *MemoryStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(valueKey(scope, key))
	return v.value, ok, nil
}

var _ Store = (*MemoryStore)(nil)
