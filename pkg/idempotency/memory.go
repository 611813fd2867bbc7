package idempotency

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	expiresAt time.Time
}

// MemoryStore keeps the most recently marked keys in a bounded LRU list.
// Keys also expire after ttl. Safe for concurrent use.
type MemoryStore struct {
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	eviction *list.List
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryStore creates a store holding at most capacity keys.
// Panics if capacity is not positive.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		panic("idempotency: capacity must be positive")
	}
	return &MemoryStore{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
}

func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false, nil
	}
	if s.expired(elem.Value.(*memoryEntry)) {
		s.remove(elem)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	if elem, ok := s.items[key]; ok {
		elem.Value.(*memoryEntry).expiresAt = expiresAt
		s.eviction.MoveToFront(elem)
		return nil
	}

	s.items[key] = s.eviction.PushFront(&memoryEntry{key: key, expiresAt: expiresAt})
	if s.eviction.Len() > s.capacity {
		s.remove(s.eviction.Back())
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eviction.Len()
}

// Must be called with lock held.
func (s *MemoryStore) expired(e *memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// Must be called with lock held.
func (s *MemoryStore) remove(elem *list.Element) {
	s.eviction.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).key)
}
