package secretstore

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/krishiconnect/backend/internal/goroutine"
)

// MemoryStore is the in-process fallback used when no Redis address is
// configured. Expiry is evaluated on read; the janitor goroutine only
// reclaims memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	expiry  expiryHeap
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates the store and starts its cleanup goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
	heap.Init(&s.expiry)

	goroutine.SafeGo(s.janitor)

	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	heap.Push(&s.expiry, expiryItem{key: key, expiresAt: expiresAt})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// janitor reclaims expired entries. The heap is ordered by expiry, so each
// sweep stops at the first still-live item. A heap item whose key was
// overwritten with a later expiry is skipped via the map check.
func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for s.expiry.Len() > 0 {
			item := s.expiry[0]
			if item.expiresAt.After(now) {
				break
			}
			heap.Pop(&s.expiry)
			if entry, ok := s.entries[item.key]; ok && !entry.expiresAt.After(now) {
				delete(s.entries, item.key)
			}
		}
		s.mu.Unlock()
	}
}

type expiryItem struct {
	key       string
	expiresAt time.Time
}

type expiryHeap []expiryItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(expiryItem)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
