package idempotency

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
)

type entry struct {
	orderID string
	expires time.Time
}

// MemoryStore keeps keys in process. Expired keys are dropped lazily on Reserve.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

var _ domain.IdempotencyStore = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryStore) Reserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.keys {
		if !now.Before(e.expires) {
			delete(m.keys, k)
		}
	}
	if _, taken := m.keys[key]; taken {
		return false, nil
	}
	m.keys[key] = entry{expires: now.Add(m.ttl)}
	return true, nil
}

func (m *MemoryStore) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = entry{orderID: orderID, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.keys[key]
	if !ok || !m.now().Before(e.expires) {
		return "", nil
	}
	return e.orderID, nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
