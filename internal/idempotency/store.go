// Package idempotency remembers request keys so replays are answered
// without reprocessing.
package idempotency

import (
	"context"
	"sync"
	"time"
)

type Record struct {
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Set(ctx context.Context, key string, rec Record) error

	// Claim marks key as seen and reports whether this call was the first.
	Claim(ctx context.Context, key string) (bool, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	claims  map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		claims:  make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Record, bool, error) {
	if key == "" {
		return Record{}, false, nil
	}

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return Record{}, false, nil
	}

	// TTL enforcement
	if s.expired(rec.CreatedAt) {
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
		return Record{}, false, nil
	}

	return rec, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, rec Record) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at, ok := s.claims[key]; ok && !s.expired(at) {
		return false, nil
	}
	s.claims[key] = s.now()
	return true, nil
}

func (s *MemoryStore) expired(at time.Time) bool {
	return s.ttl > 0 && s.now().Sub(at) > s.ttl
}
