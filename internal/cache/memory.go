package cache

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/franckalain/grocerylens/internal/models"
)

// MemoryStore is a Store that keeps entries in process memory. Nothing
// survives a restart; it backs tests and throwaway runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.CacheEntry)}
}

func (s *MemoryStore) GetCacheEntry(_ context.Context, barcode string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[barcode]
	if !ok {
		return nil, nil
	}
	e.Record = e.Record.Clone()
	return &e, nil
}

func (s *MemoryStore) PutCacheEntry(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	e.Record = entry.Record.Clone()
	s.entries[entry.Barcode] = e
	return nil
}

func (s *MemoryStore) PruneCacheEntries(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if e.FetchedAt.Before(cutoff) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TrimCacheEntries(_ context.Context, keep int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excess := len(s.entries) - keep
	if excess <= 0 {
		return nil, nil
	}
	all := make([]models.CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b models.CacheEntry) int {
		if c := a.FetchedAt.Compare(b.FetchedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Barcode, b.Barcode)
	})
	evicted := make([]string, 0, excess)
	for _, e := range all[:excess] {
		delete(s.entries, e.Barcode)
		evicted = append(evicted, e.Barcode)
	}
	return evicted, nil
}

func (s *MemoryStore) CacheEntryStats(_ context.Context, since time.Time) (int, time.Time, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		count          int
		oldest, newest time.Time
	)
	for _, e := range s.entries {
		if e.FetchedAt.Before(since) {
			continue
		}
		if count == 0 || e.FetchedAt.Before(oldest) {
			oldest = e.FetchedAt
		}
		if count == 0 || e.FetchedAt.After(newest) {
			newest = e.FetchedAt
		}
		count++
	}
	return count, oldest, newest, nil
}

func (s *MemoryStore) ClearCache(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
