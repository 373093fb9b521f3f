package guard

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// MemoryStore is a per-key-locked in-process Store. It backs unit tests and
// single-process development runs; production uses GormStore so limits hold
// across replicas. The tx argument is ignored.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	mu sync.Mutex
	st State
	ok bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) entry(key string) *memEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &memEntry{}
		s.entries[key] = e
	}
	return e
}

func (s *MemoryStore) Update(ctx context.Context, _ *gorm.DB, key string, fn func(st *State) (bool, error)) (State, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ok {
		e.st = State{WindowStart: time.Now().UTC()}
		e.ok = true
	}
	st := e.st
	dirty, err := fn(&st)
	if err != nil {
		return State{}, err
	}
	if dirty {
		e.st = st
	}
	return st, nil
}

func (s *MemoryStore) Get(ctx context.Context, _ *gorm.DB, key string) (State, bool, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st, e.ok, nil
}

func (s *MemoryStore) Seed(ctx context.Context, _ *gorm.DB, key string, count int, windowStart time.Time) error {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ok {
		e.st = State{Count: count, WindowStart: windowStart}
		e.ok = true
	}
	return nil
}
