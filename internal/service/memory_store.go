package service

import (
	"context"
	"sync"
	"time"

	"github.com/adshield/fraud-service/internal/models"
)

// In-memory store implementations for tests and single-node deployments
// without Redis. Expired entries are dropped lazily on access.

type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

func (e memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// MemoryCounterStore implements CounterStore over a mutex-guarded map.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired() {
		e = memoryEntry{expiresAt: time.Now().Add(ttl)}
	}
	e.value++
	s.entries[key] = e
	return e.value, nil
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired() {
		return 0, nil
	}
	return e.value, nil
}

// Set overwrites a counter. Used to seed collaborator-owned counters (daily
// impressions/clicks) in tests and local runs.
func (s *MemoryCounterStore) Set(key string, value int64, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// MemoryReputationStore implements ReputationStore over a mutex-guarded map.
type MemoryReputationStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryReputationStore() *MemoryReputationStore {
	return &MemoryReputationStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryReputationStore) Score(ctx context.Context, entity models.EntityType, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[reputationKey(entity, id)]
	if !ok || e.expired() {
		return 0, nil
	}
	return int(e.value), nil
}

func (s *MemoryReputationStore) Raise(ctx context.Context, entity models.EntityType, id string, candidate int) (int, error) {
	if candidate > 100 {
		candidate = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reputationKey(entity, id)
	e, ok := s.entries[key]
	if !ok || e.expired() {
		e = memoryEntry{}
	}
	if int64(candidate) > e.value {
		e.value = int64(candidate)
	}
	e.expiresAt = time.Now().Add(ReputationTTL(entity))
	s.entries[key] = e
	return int(e.value), nil
}

func (s *MemoryReputationStore) Bump(ctx context.Context, entity models.EntityType, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reputationKey(entity, id)
	e, ok := s.entries[key]
	if !ok || e.expired() {
		e = memoryEntry{}
	}
	e.value += int64(delta)
	if e.value > 100 {
		e.value = 100
	}
	e.expiresAt = time.Now().Add(ReputationTTL(entity))
	s.entries[key] = e
	return int(e.value), nil
}

// MemoryLastClickStore implements LastClickStore over a mutex-guarded map.
type MemoryLastClickStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	expiry  map[string]time.Time
}

func NewMemoryLastClickStore() *MemoryLastClickStore {
	return &MemoryLastClickStore{
		entries: make(map[string]time.Time),
		expiry:  make(map[string]time.Time),
	}
}

func (s *MemoryLastClickStore) LastClick(ctx context.Context, userID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lastClickKey(userID)
	exp, ok := s.expiry[key]
	if !ok || time.Now().After(exp) {
		return time.Time{}, false, nil
	}
	return s.entries[key], true, nil
}

func (s *MemoryLastClickStore) SetLastClick(ctx context.Context, userID string, t time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lastClickKey(userID)
	s.entries[key] = t
	s.expiry[key] = time.Now().Add(ttl)
	return nil
}
