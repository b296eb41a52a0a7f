package handoff

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry     *Entry
	expiresAt time.Time
}

// MemoryStore keeps everything in process memory. Expired items are dropped
// lazily on access and on every write.
type MemoryStore struct {
	lock    sync.Mutex
	states  map[string]time.Time
	entries map[string]memoryItem
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string]time.Time),
		entries: make(map[string]memoryItem),
		now:     time.Now,
	}
}

func (s *MemoryStore) PutState(_ context.Context, state string, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sweep()
	s.states[state] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) TakeState(_ context.Context, state string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	expiresAt, ok := s.states[state]
	if !ok {
		return ErrNotFound
	}
	delete(s.states, state)
	if !s.now().Before(expiresAt) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) PutEntry(_ context.Context, token string, entry *Entry, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sweep()
	copied := *entry
	s.entries[token] = memoryItem{entry: &copied, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) TakeEntry(_ context.Context, token string) (*Entry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	item, ok := s.entries[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, token)
	if !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}
	return item.entry, nil
}

// must be called with the lock held
func (s *MemoryStore) sweep() {
	now := s.now()
	for k, exp := range s.states {
		if !now.Before(exp) {
			delete(s.states, k)
		}
	}
	for k, item := range s.entries {
		if !now.Before(item.expiresAt) {
			delete(s.entries, k)
		}
	}
}
