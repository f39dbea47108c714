package events

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryProcessedStore is a TTL-bounded in-process Deduper.
type MemoryProcessedStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryProcessedStore keeps marks for ttl (24h when zero).
func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryProcessedStore{
		cache: cache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	if err := s.cache.Add(key(provider, eventID), struct{}{}, s.ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, provider, eventID string) (bool, error) {
	_, found := s.cache.Get(key(provider, eventID))
	return found, nil
}

func (s *MemoryProcessedStore) Forget(_ context.Context, provider, eventID string) error {
	s.cache.Delete(key(provider, eventID))
	return nil
}

func key(provider, eventID string) string {
	return provider + ":" + eventID
}
